package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqna/internal/repo"
)

// OrphanCleanupJob sweeps chunks and conversations whose chat has been
// deleted. Chat deletion only removes the chat row synchronously, so
// rows left behind by a failed cascade end up here.
type OrphanCleanupJob struct {
	chunks        *repo.ChunkRepo
	conversations *repo.ConversationRepo
	batchSize     int
}

func NewOrphanCleanupJob(chunks *repo.ChunkRepo, conversations *repo.ConversationRepo, batchSize int) *OrphanCleanupJob {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &OrphanCleanupJob{chunks: chunks, conversations: conversations, batchSize: batchSize}
}

func (j *OrphanCleanupJob) Name() string {
	return "orphan_cleanup"
}

func (j *OrphanCleanupJob) Run(ctx context.Context) error {
	if j.chunks == nil || j.conversations == nil {
		return nil
	}
	var totalChunks, totalConvs int64
	for {
		n, err := j.chunks.DeleteOrphans(ctx, j.batchSize)
		if err != nil {
			return err
		}
		totalChunks += n
		if n < int64(j.batchSize) {
			break
		}
	}
	for {
		n, err := j.conversations.DeleteOrphans(ctx, j.batchSize)
		if err != nil {
			return err
		}
		totalConvs += n
		if n < int64(j.batchSize) {
			break
		}
	}
	if totalChunks > 0 || totalConvs > 0 {
		logutil.GetLogger(ctx).Info("orphan cleanup done",
			zap.Int64("chunks", totalChunks),
			zap.Int64("conversations", totalConvs))
	}
	return nil
}
