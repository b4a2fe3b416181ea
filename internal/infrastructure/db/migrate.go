package db

import (
	"context"
	"fmt"

	"github.com/mohammadpnp/prospect-import/internal/infrastructure/db/models"
	"gorm.io/gorm"
)

const statusCheck = `
DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'prospects_files_status_check') THEN
    ALTER TABLE prospects_files
      ADD CONSTRAINT prospects_files_status_check
      CHECK (status IN ('created','processing','finished','failed'));
  END IF;
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'prospects_files_done_rows_check') THEN
    ALTER TABLE prospects_files
      ADD CONSTRAINT prospects_files_done_rows_check
      CHECK (done_rows <= total_rows);
  END IF;
END $$;
`

// Migrate creates or updates the prospects and prospects_files tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	conn := db.WithContext(ctx)

	if err := conn.AutoMigrate(&models.ProspectsFile{}, &models.Prospect{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := conn.Exec(statusCheck).Error; err != nil {
		return fmt.Errorf("add prospects_files constraints: %w", err)
	}
	return nil
}
