package prospect

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/mohammadpnp/prospect-import/internal/domain/prospect"
	"go.uber.org/zap"
)

type ImportWorkerConfig struct {
	JobTimeout      time.Duration
	FinalizeTimeout time.Duration
}

// ImportWorker runs one import job end to end. It is the handler behind every
// Dispatcher.
type ImportWorker struct {
	jobs       domain.ImportJobRepository
	tracker    *JobTracker
	storage    Storage
	codec      domain.RowCodec
	reconciler *Reconciler
	metrics    ImportMetrics
	logger     *zap.Logger
	cfg        ImportWorkerConfig
}

func NewImportWorker(
	jobs domain.ImportJobRepository,
	tracker *JobTracker,
	storage Storage,
	codec domain.RowCodec,
	reconciler *Reconciler,
	metrics ImportMetrics,
	logger *zap.Logger,
	cfg ImportWorkerConfig,
) *ImportWorker {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Minute
	}
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = 10 * time.Second
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ImportWorker{
		jobs:       jobs,
		tracker:    tracker,
		storage:    storage,
		codec:      codec,
		reconciler: reconciler,
		metrics:    metrics,
		logger:     logger.With(zap.String("component", "import-worker")),
		cfg:        cfg,
	}
}

// Process claims the job named by task and runs it. Tasks for unknown,
// running or terminal jobs are dropped, which makes redelivery harmless.
func (w *ImportWorker) Process(ctx context.Context, task ImportTask) error {
	logger := w.logger.With(zap.Int64("file_id", task.JobID))

	job, err := w.jobs.GetByID(ctx, task.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrImportJobNotFound) {
			logger.Warn("dropping task for unknown import job")
			return nil
		}
		return fmt.Errorf("load import job %d: %w", task.JobID, err)
	}
	if job.Status != domain.StatusCreated {
		logger.Debug("dropping task, import job already claimed", zap.String("status", string(job.Status)))
		return nil
	}

	claimed, err := w.tracker.Start(ctx, job.ID)
	if err != nil {
		return err
	}
	if !claimed {
		logger.Debug("dropping task, lost claim race")
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	summary, runErr := w.run(runCtx, *job)
	cancel()

	finalizeCtx, cancelFinalize := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.FinalizeTimeout)
	defer cancelFinalize()

	if errors.Is(runErr, domain.ErrJobNotProcessing) {
		// Someone else already finalized the job, usually the stale reaper.
		logger.Warn("abandoning import run, job is no longer processing", zap.Error(runErr))
		return nil
	}
	if runErr != nil {
		w.metrics.ObserveJob(domain.StatusFailed, summary)
		if failErr := w.tracker.Fail(finalizeCtx, job.ID, runErr); failErr != nil {
			return fmt.Errorf("%v; fail update failed: %w", runErr, failErr)
		}
		return runErr
	}

	if err := w.tracker.Finish(finalizeCtx, job.ID); err != nil {
		return err
	}
	w.metrics.ObserveJob(domain.StatusFinished, summary)
	logger.Info("import job summary",
		zap.Int("rows", summary.Rows),
		zap.Int("batches", summary.Batches),
		zap.Int("inserted", summary.Inserted),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
	)
	return nil
}

func (w *ImportWorker) run(ctx context.Context, job domain.ImportJob) (domain.ImportSummary, error) {
	reader, err := w.storage.Open(ctx, job.SavedFileName)
	if err != nil {
		return domain.ImportSummary{}, fmt.Errorf("open staged file: %w", err)
	}
	defer reader.Close()

	rows := w.codec.NewDecoder(reader, job.Options.Mapping)

	return w.reconciler.Run(ctx, job, rows, func(ctx context.Context) error {
		return w.tracker.Heartbeat(ctx, job.ID)
	})
}

type SweeperConfig struct {
	Interval        time.Duration
	StaleAfter      time.Duration
	RedispatchAfter time.Duration
	RedispatchLimit int
}

// Sweeper fails jobs whose worker stopped heartbeating and resubmits jobs
// that were created but never claimed.
type Sweeper struct {
	jobs       domain.ImportJobRepository
	dispatcher Dispatcher
	logger     *zap.Logger
	cfg        SweeperConfig
}

func NewSweeper(jobs domain.ImportJobRepository, dispatcher Dispatcher, logger *zap.Logger, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	if cfg.RedispatchAfter <= 0 {
		cfg.RedispatchAfter = time.Minute
	}
	if cfg.RedispatchLimit <= 0 {
		cfg.RedispatchLimit = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Sweeper{
		jobs:       jobs,
		dispatcher: dispatcher,
		logger:     logger.With(zap.String("component", "sweeper")),
		cfg:        cfg,
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	for {
		if err := s.SweepOnce(ctx); err != nil {
			s.logger.Error("sweep failed", zap.Error(err))
		}
		if !sleepWithContext(ctx, s.cfg.Interval) {
			return nil
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) error {
	reaped, err := s.jobs.ReapStale(ctx, s.cfg.StaleAfter)
	if err != nil {
		return fmt.Errorf("reap stale jobs: %w", err)
	}
	if reaped > 0 {
		s.logger.Warn("reaped stale import jobs", zap.Int64("count", reaped))
	}

	pending, err := s.jobs.ListUnclaimed(ctx, s.cfg.RedispatchAfter, s.cfg.RedispatchLimit)
	if err != nil {
		return fmt.Errorf("list unclaimed jobs: %w", err)
	}
	for _, job := range pending {
		if err := s.dispatcher.Submit(ctx, ImportTask{JobID: job.ID}); err != nil {
			return fmt.Errorf("redispatch import job %d: %w", job.ID, err)
		}
		s.logger.Info("redispatched import job", zap.Int64("file_id", job.ID))
	}
	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
