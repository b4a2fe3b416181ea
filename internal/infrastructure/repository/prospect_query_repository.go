package repository

import (
	"context"
	"fmt"

	domain "github.com/mohammadpnp/prospect-import/internal/domain/prospect"
	"github.com/mohammadpnp/prospect-import/internal/infrastructure/db/models"
	"gorm.io/gorm"
)

type ProspectQueryRepository struct {
	db *gorm.DB
}

func NewProspectQueryRepository(db *gorm.DB) *ProspectQueryRepository {
	return &ProspectQueryRepository{db: db}
}

func (r *ProspectQueryRepository) CountForFile(ctx context.Context, fileID int64) (int, error) {
	var n int64

	err := r.db.WithContext(ctx).
		Model(&models.Prospect{}).
		Where("file_id = ?", fileID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count prospects for file: %w", err)
	}
	return int(n), nil
}

func (r *ProspectQueryRepository) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	var n int64

	err := r.db.WithContext(ctx).
		Model(&models.Prospect{}).
		Where("owner_id = ?", ownerID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count prospects for owner: %w", err)
	}
	return int(n), nil
}

func (r *ProspectQueryRepository) ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]domain.Prospect, error) {
	var rows []models.Prospect

	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list prospects: %w", err)
	}

	prospects := make([]domain.Prospect, 0, len(rows))
	for _, row := range rows {
		prospects = append(prospects, domain.Prospect{
			ID:        row.ID,
			OwnerID:   row.OwnerID,
			FileID:    row.FileID,
			Email:     row.Email,
			FirstName: row.FirstName,
			LastName:  row.LastName,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return prospects, nil
}
