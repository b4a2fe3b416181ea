package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	domain "github.com/mohammadpnp/prospect-import/internal/domain/prospect"
)

// ProspectStore runs each reconciliation batch in one pgx transaction.
type ProspectStore struct {
	pool *pgxpool.Pool
}

func NewProspectStore(pool *pgxpool.Pool) *ProspectStore {
	return &ProspectStore{pool: pool}
}

func (s *ProspectStore) WithinBatch(ctx context.Context, fn func(tx domain.BatchTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&batchTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit prospect batch: %w", err)
	}
	return nil
}

type batchTx struct {
	tx pgx.Tx
}

func (b *batchTx) LockProcessing(ctx context.Context, fileID int64) error {
	var status string
	err := b.tx.QueryRow(ctx, `SELECT status FROM prospects_files WHERE id = $1 FOR UPDATE`, fileID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: job %d not found", domain.ErrJobNotProcessing, fileID)
	}
	if err != nil {
		return fmt.Errorf("lock import job: %w", err)
	}
	if domain.ImportJobStatus(status) != domain.StatusProcessing {
		return fmt.Errorf("%w: job %d is %s", domain.ErrJobNotProcessing, fileID, status)
	}
	return nil
}

func (b *batchTx) FindByEmails(ctx context.Context, ownerID int64, emails []string) ([]domain.Prospect, error) {
	if len(emails) == 0 {
		return nil, nil
	}

	rows, err := b.tx.Query(ctx, `
SELECT id, owner_id, file_id, email, first_name, last_name, created_at, updated_at
FROM prospects
WHERE owner_id = $1 AND email = ANY($2)
FOR UPDATE
`, ownerID, emails)
	if err != nil {
		return nil, fmt.Errorf("select prospects by email: %w", err)
	}
	defer rows.Close()

	found := make([]domain.Prospect, 0)
	for rows.Next() {
		var p domain.Prospect
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.FileID, &p.Email, &p.FirstName, &p.LastName, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan prospect: %w", err)
		}
		found = append(found, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prospects: %w", err)
	}

	return found, nil
}

func (b *batchTx) UpdateProspects(ctx context.Context, updates []domain.ProspectUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`
UPDATE prospects
SET first_name = $2, last_name = $3, file_id = $4, updated_at = NOW()
WHERE id = $1
`, u.ID, u.FirstName, u.LastName, u.FileID)
	}

	results := b.tx.SendBatch(ctx, batch)
	for range updates {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("update prospect: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close update batch: %w", err)
	}
	return nil
}

func (b *batchTx) InsertProspects(ctx context.Context, ownerID int64, records []domain.NewProspect) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{ownerID, r.Email, r.FirstName, r.LastName, r.FileID, now, now})
	}

	if _, err := b.tx.CopyFrom(
		ctx,
		pgx.Identifier{"prospects"},
		[]string{"owner_id", "email", "first_name", "last_name", "file_id", "created_at", "updated_at"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("copy prospects: %w", err)
	}
	return nil
}

func (b *batchTx) IncrementDoneRows(ctx context.Context, fileID int64, delta int) error {
	if _, err := b.tx.Exec(ctx, `
UPDATE prospects_files
SET done_rows = LEAST(done_rows + $2, total_rows), updated_at = NOW()
WHERE id = $1
`, fileID, delta); err != nil {
		return fmt.Errorf("increment done rows: %w", err)
	}
	return nil
}
