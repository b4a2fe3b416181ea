package prospect

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	domain "github.com/mohammadpnp/prospect-import/internal/domain/prospect"
	"go.uber.org/zap"
)

const maxReasonLength = 1000

// JobTracker drives import job state changes and keeps the progress cache in
// step with them.
type JobTracker struct {
	jobs   domain.ImportJobRepository
	cache  ProgressCache
	logger *zap.Logger
}

func NewJobTracker(jobs domain.ImportJobRepository, cache ProgressCache, logger *zap.Logger) *JobTracker {
	if cache == nil {
		cache = NopProgressCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobTracker{
		jobs:   jobs,
		cache:  cache,
		logger: logger.With(zap.String("component", "job-tracker")),
	}
}

// Start moves a created job to processing. It reports false when the job was
// already claimed or has finished.
func (t *JobTracker) Start(ctx context.Context, id int64) (bool, error) {
	claimed, err := t.jobs.Claim(ctx, id)
	if err != nil {
		return false, fmt.Errorf("claim import job %d: %w", id, err)
	}
	if claimed {
		t.cache.Invalidate(ctx, id)
		t.logger.Info("import job processing", zap.Int64("file_id", id))
	}
	return claimed, nil
}

func (t *JobTracker) Heartbeat(ctx context.Context, id int64) error {
	if err := t.jobs.Heartbeat(ctx, id); err != nil {
		return fmt.Errorf("heartbeat import job %d: %w", id, err)
	}
	return nil
}

func (t *JobTracker) Finish(ctx context.Context, id int64) error {
	if err := t.jobs.Finish(ctx, id); err != nil {
		return fmt.Errorf("finish import job %d: %w", id, err)
	}
	t.cache.Invalidate(ctx, id)
	t.logger.Info("import job finished", zap.Int64("file_id", id))
	return nil
}

func (t *JobTracker) Fail(ctx context.Context, id int64, cause error) error {
	reason := truncateReason(cause.Error())
	if err := t.jobs.Fail(ctx, id, reason); err != nil {
		return fmt.Errorf("fail import job %d: %w", id, err)
	}
	t.cache.Invalidate(ctx, id)
	t.logger.Warn("import job failed", zap.Int64("file_id", id), zap.String("reason", reason))
	return nil
}

// truncateReason caps reason at maxReasonLength bytes without splitting a
// UTF-8 sequence.
func truncateReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if len(reason) <= maxReasonLength {
		return reason
	}
	cut := maxReasonLength
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}
