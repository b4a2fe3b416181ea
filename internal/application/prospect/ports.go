package prospect

import (
	"context"
	"io"
	"time"

	domain "github.com/mohammadpnp/prospect-import/internal/domain/prospect"
)

type Storage interface {
	Save(ctx context.Context, r io.Reader) (string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// ImportTask is the unit handed to a Dispatcher. It only carries the job id;
// everything else is read back from the job row.
type ImportTask struct {
	JobID int64 `json:"job_id"`
}

type Dispatcher interface {
	Submit(ctx context.Context, task ImportTask) error
}

type ProgressCache interface {
	GetOrLoad(ctx context.Context, fileID int64, load func(ctx context.Context) (ProgressSnapshot, error)) (ProgressSnapshot, error)
	Invalidate(ctx context.Context, fileID int64)
}

type ProgressSnapshot struct {
	OwnerID int64                  `json:"owner_id"`
	Total   int                    `json:"total"`
	Done    int                    `json:"done"`
	Status  domain.ImportJobStatus `json:"status"`
}

type ImportMetrics interface {
	ObserveUpload(rows int)
	ObserveBatch(result domain.BatchResult, duration time.Duration)
	ObserveJob(status domain.ImportJobStatus, summary domain.ImportSummary)
}

type NopMetrics struct{}

func (NopMetrics) ObserveUpload(int) {}

func (NopMetrics) ObserveBatch(domain.BatchResult, time.Duration) {}

func (NopMetrics) ObserveJob(domain.ImportJobStatus, domain.ImportSummary) {}

type NopProgressCache struct{}

func (NopProgressCache) GetOrLoad(ctx context.Context, _ int64, load func(ctx context.Context) (ProgressSnapshot, error)) (ProgressSnapshot, error) {
	return load(ctx)
}

func (NopProgressCache) Invalidate(context.Context, int64) {}
