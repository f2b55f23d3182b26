package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	appErr "github.com/xxxsen/docqna/internal/pkg/errors"

	"github.com/xxxsen/docqna/internal/model"
)

// ChunkRepo owns the chunks table. Rows are immutable; the only
// mutations are bulk insert and whole-chat delete.
type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// InsertMany writes one row per chunk inside a single transaction, so
// a batch is stored all-or-nothing. Contents and embeddings must have
// equal length; a mismatch is rejected before anything is written.
func (r *ChunkRepo) InsertMany(ctx context.Context, userID, chatID string, contents []string, embeddings [][]float32, ctime int64) error {
	if len(contents) != len(embeddings) {
		return fmt.Errorf("%w: %d contents vs %d embeddings", appErr.ErrInvalid, len(contents), len(embeddings))
	}
	if len(contents) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	const query = `
		INSERT INTO chunks (user_id, chat_id, content, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5)
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, content := range contents {
		if _, err := stmt.ExecContext(ctx, userID, chatID, content, pgvector.NewVector(embeddings[i]), ctime); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListByChat returns every chunk for the (owner, chat) pair. No
// ordering is guaranteed; ranking happens in the caller.
func (r *ChunkRepo) ListByChat(ctx context.Context, userID, chatID string) ([]model.Chunk, error) {
	const query = `
		SELECT id, user_id, chat_id, content, embedding, ctime
		FROM chunks
		WHERE user_id = $1 AND chat_id = $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Chunk
	for rows.Next() {
		var item model.Chunk
		var embedding pgvector.Vector
		if err := rows.Scan(&item.ID, &item.UserID, &item.ChatID, &item.Content, &embedding, &item.Ctime); err != nil {
			return nil, err
		}
		item.Embedding = embedding.Slice()
		results = append(results, item)
	}
	return results, rows.Err()
}

func (r *ChunkRepo) CountByChat(ctx context.Context, userID, chatID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM chunks WHERE user_id = $1 AND chat_id = $2`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, userID, chatID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ChunkRepo) DeleteByChat(ctx context.Context, userID, chatID string) (int64, error) {
	const query = `DELETE FROM chunks WHERE user_id = $1 AND chat_id = $2`
	res, err := r.db.ExecContext(ctx, query, userID, chatID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteOrphans removes chunks whose chat no longer exists; the
// background sweep uses this after chat deletion.
func (r *ChunkRepo) DeleteOrphans(ctx context.Context, limit int) (int64, error) {
	const query = `
		DELETE FROM chunks
		WHERE id IN (
			SELECT c.id FROM chunks c
			LEFT JOIN chats ch ON c.chat_id = ch.id
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
