package prospect

import (
	"context"
	"time"
)

type ImportJobRepository interface {
	Create(ctx context.Context, job NewImportJob) (ImportJob, error)
	GetByID(ctx context.Context, id int64) (*ImportJob, error)
	Claim(ctx context.Context, id int64) (bool, error)
	Heartbeat(ctx context.Context, id int64) error
	Finish(ctx context.Context, id int64) error
	Fail(ctx context.Context, id int64, reason string) error
	ReapStale(ctx context.Context, staleAfter time.Duration) (int64, error)
	ListUnclaimed(ctx context.Context, olderThan time.Duration, limit int) ([]ImportJob, error)
}

// BatchTx is the view of the store inside one reconciliation batch. Every
// call made through it commits or rolls back together.
type BatchTx interface {
	// LockProcessing locks the job row for the rest of the batch and fails
	// with ErrJobNotProcessing unless the job is still processing.
	LockProcessing(ctx context.Context, fileID int64) error
	FindByEmails(ctx context.Context, ownerID int64, emails []string) ([]Prospect, error)
	UpdateProspects(ctx context.Context, updates []ProspectUpdate) error
	InsertProspects(ctx context.Context, ownerID int64, records []NewProspect) error
	IncrementDoneRows(ctx context.Context, fileID int64, delta int) error
}

type ProspectStore interface {
	WithinBatch(ctx context.Context, fn func(tx BatchTx) error) error
}

type ProspectQueryRepository interface {
	CountForFile(ctx context.Context, fileID int64) (int, error)
	CountByOwner(ctx context.Context, ownerID int64) (int, error)
	ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]Prospect, error)
}
