package prospect

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/mohammadpnp/prospect-import/internal/domain/prospect"
)

type ProgressMode string

const (
	// ProgressDerived counts the prospects currently pointing at the file.
	ProgressDerived ProgressMode = "derived"
	// ProgressCounter reads the done_rows column kept by the reconciler.
	ProgressCounter ProgressMode = "counter"
)

func (m ProgressMode) Valid() bool {
	return m == ProgressDerived || m == ProgressCounter
}

type GetImportProgressInput struct {
	CallerID int64
	FileID   int64
}

type GetImportProgressOutput struct {
	Total  int                    `json:"total"`
	Done   int                    `json:"done"`
	Status domain.ImportJobStatus `json:"status"`
}

type GetImportProgress interface {
	Execute(ctx context.Context, in GetImportProgressInput) (GetImportProgressOutput, error)
}

type importJobReader interface {
	GetByID(ctx context.Context, id int64) (*domain.ImportJob, error)
}

type fileCounter interface {
	CountForFile(ctx context.Context, fileID int64) (int, error)
}

type getImportProgress struct {
	jobs     importJobReader
	prospect fileCounter
	cache    ProgressCache
	mode     ProgressMode
}

func NewGetImportProgress(jobs importJobReader, prospects fileCounter, cache ProgressCache, mode ProgressMode) GetImportProgress {
	if cache == nil {
		cache = NopProgressCache{}
	}
	if !mode.Valid() {
		mode = ProgressDerived
	}
	return &getImportProgress{
		jobs:     jobs,
		prospect: prospects,
		cache:    cache,
		mode:     mode,
	}
}

func (uc *getImportProgress) Execute(ctx context.Context, in GetImportProgressInput) (GetImportProgressOutput, error) {
	if in.CallerID <= 0 {
		return GetImportProgressOutput{}, ErrUnauthorized
	}
	if in.FileID <= 0 {
		return GetImportProgressOutput{}, ErrNotFound
	}

	snapshot, err := uc.cache.GetOrLoad(ctx, in.FileID, uc.load(in.FileID))
	if err != nil {
		if errors.Is(err, domain.ErrImportJobNotFound) {
			return GetImportProgressOutput{}, ErrNotFound
		}
		return GetImportProgressOutput{}, fmt.Errorf("%w: %v", ErrGetProgress, err)
	}

	if snapshot.OwnerID != in.CallerID {
		return GetImportProgressOutput{}, ErrForbidden
	}

	return GetImportProgressOutput{
		Total:  snapshot.Total,
		Done:   domain.ClampProgress(snapshot.Done, snapshot.Total),
		Status: snapshot.Status,
	}, nil
}

// load reads the job before the done count, so a status observed here never
// runs ahead of the rows it describes.
func (uc *getImportProgress) load(fileID int64) func(ctx context.Context) (ProgressSnapshot, error) {
	return func(ctx context.Context) (ProgressSnapshot, error) {
		job, err := uc.jobs.GetByID(ctx, fileID)
		if err != nil {
			return ProgressSnapshot{}, err
		}

		done := job.DoneRows
		if uc.mode == ProgressDerived {
			done, err = uc.prospect.CountForFile(ctx, fileID)
			if err != nil {
				return ProgressSnapshot{}, fmt.Errorf("count prospects for file: %w", err)
			}
		}

		return ProgressSnapshot{
			OwnerID: job.OwnerID,
			Total:   job.TotalRows,
			Done:    domain.ClampProgress(done, job.TotalRows),
			Status:  job.Status,
		}, nil
	}
}
