package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/docqna/internal/model"
	"github.com/xxxsen/docqna/internal/pkg/dbutil"
	appErr "github.com/xxxsen/docqna/internal/pkg/errors"
)

var conversationFields = []string{"id", "user_id", "chat_id", "question", "answer", "ctime"}

// ConversationRepo owns the append-only conversation history.
type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

func (r *ConversationRepo) Append(ctx context.Context, conv *model.Conversation) error {
	data := map[string]interface{}{
		"user_id":  conv.UserID,
		"chat_id":  conv.ChatID,
		"question": conv.Question,
		"answer":   conv.Answer,
		"ctime":    conv.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("conversations", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// ListByChat returns the most recent exchanges first.
func (r *ConversationRepo) ListByChat(ctx context.Context, userID, chatID string, limit uint) ([]model.Conversation, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"chat_id":  chatID,
		"_orderby": "id desc",
	}
	if limit > 0 {
		where["_limit"] = []uint{limit}
	}
	sqlStr, args, err := builder.BuildSelect("conversations", where, conversationFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var results []model.Conversation
	for rows.Next() {
		var conv model.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.ChatID, &conv.Question, &conv.Answer, &conv.Ctime); err != nil {
			return nil, err
		}
		results = append(results, conv)
	}
	return results, rows.Err()
}

// Latest returns the newest exchange for a chat, used for chat
// summaries.
func (r *ConversationRepo) Latest(ctx context.Context, userID, chatID string) (*model.Conversation, error) {
	results, err := r.ListByChat(ctx, userID, chatID, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &results[0], nil
}

func (r *ConversationRepo) DeleteByChat(ctx context.Context, userID, chatID string) (int64, error) {
	where := map[string]interface{}{"user_id": userID, "chat_id": chatID}
	sqlStr, args, err := builder.BuildDelete("conversations", where)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteOrphans removes exchanges whose chat no longer exists.
func (r *ConversationRepo) DeleteOrphans(ctx context.Context, limit int) (int64, error) {
	const query = `
		DELETE FROM conversations
		WHERE id IN (
			SELECT cv.id FROM conversations cv
			LEFT JOIN chats ch ON cv.chat_id = ch.id
			WHERE ch.id IS NULL
			LIMIT $1
		)
	`
	res, err := r.db.ExecContext(ctx, query, limit)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
