package prospect

import (
	"context"
	"fmt"
	"time"

	domain "github.com/mohammadpnp/prospect-import/internal/domain/prospect"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

type ListProspectsInput struct {
	CallerID int64
	Page     int
	PageSize int
}

type ProspectOutput struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	FileID    *int64    `json:"file_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ListProspectsOutput struct {
	Prospects []ProspectOutput `json:"prospects"`
	Size      int              `json:"size"`
	Total     int              `json:"total"`
}

type ListProspects interface {
	Execute(ctx context.Context, in ListProspectsInput) (ListProspectsOutput, error)
}

type listProspects struct {
	repo domain.ProspectQueryRepository
}

func NewListProspects(repo domain.ProspectQueryRepository) ListProspects {
	return &listProspects{repo: repo}
}

func (uc *listProspects) Execute(ctx context.Context, in ListProspectsInput) (ListProspectsOutput, error) {
	if in.CallerID <= 0 {
		return ListProspectsOutput{}, ErrUnauthorized
	}

	page, pageSize := normalizePage(in.Page, in.PageSize)

	total, err := uc.repo.CountByOwner(ctx, in.CallerID)
	if err != nil {
		return ListProspectsOutput{}, fmt.Errorf("%w: %v", ErrListProspects, err)
	}

	rows, err := uc.repo.ListByOwner(ctx, in.CallerID, page*pageSize, pageSize)
	if err != nil {
		return ListProspectsOutput{}, fmt.Errorf("%w: %v", ErrListProspects, err)
	}

	prospects := make([]ProspectOutput, 0, len(rows))
	for _, p := range rows {
		prospects = append(prospects, ProspectOutput{
			ID:        p.ID,
			Email:     p.Email,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			FileID:    p.FileID,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		})
	}

	return ListProspectsOutput{
		Prospects: prospects,
		Size:      len(prospects),
		Total:     total,
	}, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 0 {
		page = 0
	}
	switch {
	case pageSize == 0:
		pageSize = DefaultPageSize
	case pageSize < 1:
		pageSize = 1
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return page, pageSize
}
