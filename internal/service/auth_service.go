package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	appErr "github.com/xxxsen/docqna/internal/pkg/errors"
	"github.com/xxxsen/docqna/internal/pkg/jwt"
	"github.com/xxxsen/docqna/internal/pkg/password"
	"github.com/xxxsen/docqna/internal/pkg/timeutil"

	"github.com/xxxsen/docqna/internal/model"
	"github.com/xxxsen/docqna/internal/repo"
)

type AuthService struct {
	users     *repo.UserRepo
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewAuthService(users *repo.UserRepo, jwtSecret []byte, tokenTTL time.Duration) *AuthService {
	return &AuthService{users: users, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

func (s *AuthService) Register(ctx context.Context, email, plain string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, appErr.ErrInvalid
	}
	if len(plain) < 8 {
		return nil, appErr.ErrInvalid
	}
	hash, err := password.Hash(plain)
	if err != nil {
		return nil, err
	}
	now := timeutil.NowUnix()
	user := &model.User{
		ID:           newID(),
		Email:        email,
		PasswordHash: hash,
		Ctime:        now,
		Mtime:        now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and returns a signed token. An unknown
// email and a wrong password both map to ErrUnauthorized so callers
// cannot probe which accounts exist.
func (s *AuthService) Login(ctx context.Context, email, plain string) (string, *model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if appErr.IsNotFound(err) {
			return "", nil, appErr.ErrUnauthorized
		}
		return "", nil, err
	}
	if err := password.Compare(user.PasswordHash, plain); err != nil {
		return "", nil, appErr.ErrUnauthorized
	}
	token, err := jwt.GenerateToken(user.ID, user.Email, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}
