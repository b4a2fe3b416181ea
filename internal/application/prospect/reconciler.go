package prospect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	domain "github.com/mohammadpnp/prospect-import/internal/domain/prospect"
	"go.uber.org/zap"
)

const (
	DefaultBatchSize         = 1000
	DefaultHeartbeatInterval = 30 * time.Second
)

type ReconcilerConfig struct {
	BatchSize int
	// CountDoneRows keeps prospects_files.done_rows in step with each batch.
	CountDoneRows bool
	// HeartbeatInterval bounds the time between heartbeats while rows are
	// read, independent of how long a batch takes to fill.
	HeartbeatInterval time.Duration
}

type Reconciler struct {
	store   domain.ProspectStore
	metrics ImportMetrics
	logger  *zap.Logger
	cfg     ReconcilerConfig
}

func NewReconciler(store domain.ProspectStore, metrics ImportMetrics, logger *zap.Logger, cfg ReconcilerConfig) *Reconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reconciler{
		store:   store,
		metrics: metrics,
		logger:  logger.With(zap.String("component", "reconciler")),
		cfg:     cfg,
	}
}

// Run drains rows into batches of at most BatchSize distinct emails and
// commits each batch in its own transaction. The first bad row or failed
// batch stops the run; batches committed before it stay committed.
// heartbeat is called after every committed batch and every
// HeartbeatInterval in between; an error from it stops the run.
func (r *Reconciler) Run(ctx context.Context, job domain.ImportJob, rows domain.RowDecoder, heartbeat func(ctx context.Context) error) (domain.ImportSummary, error) {
	summary := domain.ImportSummary{}
	acc := newAccumulator(r.cfg.BatchSize)

	beat := func() error {
		if heartbeat == nil {
			return nil
		}
		return heartbeat(ctx)
	}

	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()

	flush := func() error {
		if acc.len() == 0 {
			return nil
		}

		result, err := r.flush(ctx, job, acc.candidates())
		if err != nil {
			return err
		}

		summary.Batches++
		summary.Inserted += result.Inserted
		summary.Updated += result.Updated
		summary.Skipped += result.Skipped
		acc.reset()

		return beat()
	}

	for {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		case <-ticker.C:
			if err := beat(); err != nil {
				return summary, err
			}
		default:
		}

		raw, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, domain.ErrMalformedRow) {
				return summary, err
			}
			return summary, fmt.Errorf("%w: %v", domain.ErrMalformedRow, err)
		}

		summary.Rows++

		candidate, err := domain.NewCandidate(raw.Email, raw.FirstName, raw.LastName)
		if err != nil {
			return summary, fmt.Errorf("%w: line %d: %v", ErrValidation, raw.Line, err)
		}

		acc.put(candidate)
		if acc.len() >= r.cfg.BatchSize {
			if err := flush(); err != nil {
				return summary, err
			}
		}
	}

	if err := flush(); err != nil {
		return summary, err
	}

	return summary, nil
}

func (r *Reconciler) flush(ctx context.Context, job domain.ImportJob, candidates []domain.Candidate) (domain.BatchResult, error) {
	start := time.Now()

	emails := make([]string, 0, len(candidates))
	for _, c := range candidates {
		emails = append(emails, c.Email)
	}

	var result domain.BatchResult
	err := r.store.WithinBatch(ctx, func(tx domain.BatchTx) error {
		result = domain.BatchResult{}

		if err := tx.LockProcessing(ctx, job.ID); err != nil {
			return err
		}

		existing, err := tx.FindByEmails(ctx, job.OwnerID, emails)
		if err != nil {
			return fmt.Errorf("find existing prospects: %w", err)
		}

		matched := make(map[string]int64, len(existing))
		for _, p := range existing {
			matched[strings.ToLower(p.Email)] = p.ID
		}

		updates := make([]domain.ProspectUpdate, 0)
		inserts := make([]domain.NewProspect, 0, len(candidates))
		for _, c := range candidates {
			id, ok := matched[c.Email]
			if !ok {
				inserts = append(inserts, domain.NewProspect{
					Email:     c.Email,
					FirstName: c.FirstName,
					LastName:  c.LastName,
					FileID:    job.ID,
				})
				continue
			}
			if !job.Options.Force {
				result.Skipped++
				continue
			}
			updates = append(updates, domain.ProspectUpdate{
				ID:        id,
				FirstName: c.FirstName,
				LastName:  c.LastName,
				FileID:    job.ID,
			})
		}

		if len(updates) > 0 {
			if err := tx.UpdateProspects(ctx, updates); err != nil {
				return fmt.Errorf("update prospects: %w", err)
			}
		}
		if len(inserts) > 0 {
			if err := tx.InsertProspects(ctx, job.OwnerID, inserts); err != nil {
				return fmt.Errorf("insert prospects: %w", err)
			}
		}

		result.Updated = len(updates)
		result.Inserted = len(inserts)

		if r.cfg.CountDoneRows && result.Inserted+result.Updated > 0 {
			if err := tx.IncrementDoneRows(ctx, job.ID, result.Inserted+result.Updated); err != nil {
				return fmt.Errorf("increment done rows: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrJobNotProcessing) {
			return domain.BatchResult{}, err
		}
		return domain.BatchResult{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	elapsed := time.Since(start)
	r.metrics.ObserveBatch(result, elapsed)
	r.logger.Debug("batch committed",
		zap.Int64("file_id", job.ID),
		zap.Int("candidates", len(candidates)),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Duration("elapsed", elapsed),
	)

	return result, nil
}

// accumulator keeps one candidate per email. A later row for the same email
// replaces the earlier one but keeps its original position.
type accumulator struct {
	index   map[string]int
	entries []domain.Candidate
}

func newAccumulator(size int) *accumulator {
	return &accumulator{
		index:   make(map[string]int, size),
		entries: make([]domain.Candidate, 0, size),
	}
}

func (a *accumulator) put(c domain.Candidate) {
	if i, ok := a.index[c.Email]; ok {
		a.entries[i] = c
		return
	}
	a.index[c.Email] = len(a.entries)
	a.entries = append(a.entries, c)
}

func (a *accumulator) len() int {
	return len(a.entries)
}

func (a *accumulator) candidates() []domain.Candidate {
	return a.entries
}

func (a *accumulator) reset() {
	clear(a.index)
	a.entries = a.entries[:0]
}
