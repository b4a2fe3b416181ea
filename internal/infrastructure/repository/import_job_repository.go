package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/mohammadpnp/prospect-import/internal/domain/prospect"
	"github.com/mohammadpnp/prospect-import/internal/infrastructure/db/models"
	"gorm.io/gorm"
)

const staleReason = "stale: worker heartbeat lost"

type ImportJobRepository struct {
	db *gorm.DB
}

func NewImportJobRepository(db *gorm.DB) *ImportJobRepository {
	return &ImportJobRepository{db: db}
}

func (r *ImportJobRepository) Create(ctx context.Context, in domain.NewImportJob) (domain.ImportJob, error) {
	row := models.ProspectsFile{
		OwnerID:          in.OwnerID,
		OriginalFileName: in.OriginalFileName,
		SavedFileName:    in.SavedFileName,
		TotalRows:        in.TotalRows,
		Status:           string(domain.StatusCreated),
		EmailIndex:       in.Options.Mapping.EmailIndex,
		FirstNameIndex:   in.Options.Mapping.FirstNameIndex,
		LastNameIndex:    in.Options.Mapping.LastNameIndex,
		HasHeaders:       in.Options.Mapping.HasHeaders,
		Force:            in.Options.Force,
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.ImportJob{}, fmt.Errorf("create import job: %w", err)
	}

	return toDomainJob(row), nil
}

func (r *ImportJobRepository) GetByID(ctx context.Context, id int64) (*domain.ImportJob, error) {
	var row models.ProspectsFile

	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrImportJobNotFound
		}
		return nil, fmt.Errorf("get import job: %w", err)
	}

	job := toDomainJob(row)
	return &job, nil
}

// Claim moves a created job to processing. Only one caller can win.
func (r *ImportJobRepository) Claim(ctx context.Context, id int64) (bool, error) {
	now := time.Now().UTC()

	res := r.db.WithContext(ctx).
		Model(&models.ProspectsFile{}).
		Where("id = ? AND status = ?", id, string(domain.StatusCreated)).
		Updates(map[string]any{
			"status":       string(domain.StatusProcessing),
			"started_at":   now,
			"heartbeat_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("claim import job: %w", res.Error)
	}

	return res.RowsAffected == 1, nil
}

func (r *ImportJobRepository) Heartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()

	res := r.db.WithContext(ctx).
		Model(&models.ProspectsFile{}).
		Where("id = ? AND status = ?", id, string(domain.StatusProcessing)).
		Updates(map[string]any{
			"heartbeat_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return fmt.Errorf("heartbeat import job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: job %d", domain.ErrJobNotProcessing, id)
	}
	return nil
}

func (r *ImportJobRepository) Finish(ctx context.Context, id int64) error {
	return r.transition(ctx, id, domain.StatusFinished, nil)
}

func (r *ImportJobRepository) Fail(ctx context.Context, id int64, reason string) error {
	return r.transition(ctx, id, domain.StatusFailed, &reason)
}

func (r *ImportJobRepository) transition(ctx context.Context, id int64, to domain.ImportJobStatus, reason *string) error {
	now := time.Now().UTC()
	from := domain.SourcesOf(to)

	res := r.db.WithContext(ctx).
		Model(&models.ProspectsFile{}).
		Where("id = ? AND status IN ?", id, statusStrings(from)).
		Updates(map[string]any{
			"status":        string(to),
			"error_message": reason,
			"finished_at":   now,
			"updated_at":    now,
		})
	if res.Error != nil {
		return fmt.Errorf("mark import job %s: %w", to, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: job %d to %s", domain.ErrInvalidTransition, id, to)
	}
	return nil
}

func (r *ImportJobRepository) ReapStale(ctx context.Context, staleAfter time.Duration) (int64, error) {
	now := time.Now().UTC()

	res := r.db.WithContext(ctx).
		Model(&models.ProspectsFile{}).
		Where("status = ? AND heartbeat_at < ?", string(domain.StatusProcessing), now.Add(-staleAfter)).
		Updates(map[string]any{
			"status":        string(domain.StatusFailed),
			"error_message": staleReason,
			"finished_at":   now,
			"updated_at":    now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("reap stale import jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *ImportJobRepository) ListUnclaimed(ctx context.Context, olderThan time.Duration, limit int) ([]domain.ImportJob, error) {
	var rows []models.ProspectsFile

	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(domain.StatusCreated), time.Now().UTC().Add(-olderThan)).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list unclaimed import jobs: %w", err)
	}

	jobs := make([]domain.ImportJob, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, toDomainJob(row))
	}
	return jobs, nil
}

func toDomainJob(row models.ProspectsFile) domain.ImportJob {
	job := domain.ImportJob{
		ID:               row.ID,
		OwnerID:          row.OwnerID,
		OriginalFileName: row.OriginalFileName,
		SavedFileName:    row.SavedFileName,
		TotalRows:        row.TotalRows,
		DoneRows:         row.DoneRows,
		Status:           domain.ImportJobStatus(row.Status),
		Options: domain.ImportOptions{
			Mapping: domain.ColumnMapping{
				EmailIndex:     row.EmailIndex,
				FirstNameIndex: row.FirstNameIndex,
				LastNameIndex:  row.LastNameIndex,
				HasHeaders:     row.HasHeaders,
			},
			Force: row.Force,
		},
		HeartbeatAt: row.HeartbeatAt,
		StartedAt:   row.StartedAt,
		FinishedAt:  row.FinishedAt,
		CreatedAt:   row.CreatedAt,
	}
	if row.ErrorMessage != nil {
		job.ErrorMessage = *row.ErrorMessage
	}
	return job
}

func statusStrings(in []domain.ImportJobStatus) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}
