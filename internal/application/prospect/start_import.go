package prospect

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	domain "github.com/mohammadpnp/prospect-import/internal/domain/prospect"
	"go.uber.org/zap"
)

const importAcceptedMessage = "File upload success. Waiting to be processed."

type StartImportInput struct {
	OwnerID  int64
	FileName string
	File     io.Reader
	Mapping  domain.ColumnMapping
	Force    bool
}

type StartImportOutput struct {
	Result string `json:"result"`
	FileID int64  `json:"file_id"`
}

type StartImport interface {
	Execute(ctx context.Context, in StartImportInput) (StartImportOutput, error)
}

type importJobCreator interface {
	Create(ctx context.Context, job domain.NewImportJob) (domain.ImportJob, error)
}

type startImport struct {
	jobs       importJobCreator
	storage    Storage
	codec      domain.RowCodec
	dispatcher Dispatcher
	metrics    ImportMetrics
	logger     *zap.Logger
}

func NewStartImport(jobs importJobCreator, storage Storage, codec domain.RowCodec, dispatcher Dispatcher, metrics ImportMetrics, logger *zap.Logger) StartImport {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &startImport{
		jobs:       jobs,
		storage:    storage,
		codec:      codec,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger.With(zap.String("component", "start-import")),
	}
}

func (uc *startImport) Execute(ctx context.Context, in StartImportInput) (StartImportOutput, error) {
	if in.OwnerID <= 0 {
		return StartImportOutput{}, ErrUnauthorized
	}
	if err := validateMapping(in.Mapping); err != nil {
		return StartImportOutput{}, err
	}
	if in.File == nil {
		return StartImportOutput{}, ErrUploadRejected
	}

	savedName, err := uc.storage.Save(ctx, in.File)
	if err != nil {
		return StartImportOutput{}, fmt.Errorf("%w: %v", ErrStageUpload, err)
	}

	totalRows, err := uc.countRows(ctx, savedName, in.Mapping.HasHeaders)
	if err != nil {
		return StartImportOutput{}, err
	}
	if totalRows == 0 {
		return StartImportOutput{}, ErrUploadRejected
	}

	job, err := uc.jobs.Create(ctx, domain.NewImportJob{
		OwnerID:          in.OwnerID,
		OriginalFileName: originalName(in.FileName),
		SavedFileName:    savedName,
		TotalRows:        totalRows,
		Options: domain.ImportOptions{
			Mapping: in.Mapping,
			Force:   in.Force,
		},
	})
	if err != nil {
		return StartImportOutput{}, fmt.Errorf("%w: %v", ErrCreateImportJob, err)
	}
	uc.metrics.ObserveUpload(totalRows)

	logger := uc.logger.With(zap.Int64("file_id", job.ID), zap.Int64("owner_id", in.OwnerID))
	if err := uc.dispatcher.Submit(ctx, ImportTask{JobID: job.ID}); err != nil {
		// The job row is durable; the sweeper picks it up later.
		logger.Error("submit import task failed", zap.Error(err))
	} else {
		logger.Info("import job queued", zap.Int("total_rows", totalRows))
	}

	return StartImportOutput{
		Result: importAcceptedMessage,
		FileID: job.ID,
	}, nil
}

func (uc *startImport) countRows(ctx context.Context, savedName string, hasHeaders bool) (int, error) {
	reader, err := uc.storage.Open(ctx, savedName)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStageUpload, err)
	}
	defer reader.Close()

	total, err := uc.codec.CountRows(reader, hasHeaders)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUploadRejected, err)
	}
	return total, nil
}

func validateMapping(m domain.ColumnMapping) error {
	if m.EmailIndex < 0 {
		return fmt.Errorf("%w: email_index must be >= 0", ErrInvalidColumnMapping)
	}
	if m.FirstNameIndex < -1 {
		return fmt.Errorf("%w: first_name_index must be >= -1", ErrInvalidColumnMapping)
	}
	if m.LastNameIndex < -1 {
		return fmt.Errorf("%w: last_name_index must be >= -1", ErrInvalidColumnMapping)
	}
	return nil
}

func originalName(name string) string {
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "upload.csv"
	}
	return name
}
