package models

import "time"

// ProspectsFile is one uploaded CSV and its import state. The column mapping
// is persisted so a redelivered task can be replayed from the row alone.
type ProspectsFile struct {
	ID               int64   `gorm:"primaryKey"`
	OwnerID          int64   `gorm:"not null;index"`
	OriginalFileName string  `gorm:"type:text;not null"`
	SavedFileName    string  `gorm:"type:text;not null;uniqueIndex"`
	TotalRows        int     `gorm:"not null;default:0"`
	DoneRows         int     `gorm:"not null;default:0"`
	Status           string  `gorm:"type:text;not null;index"`
	EmailIndex       int     `gorm:"not null"`
	FirstNameIndex   int     `gorm:"not null"`
	LastNameIndex    int     `gorm:"not null"`
	HasHeaders       bool    `gorm:"not null"`
	Force            bool    `gorm:"not null"`
	ErrorMessage     *string `gorm:"type:text"`
	HeartbeatAt      *time.Time
	StartedAt        *time.Time
	FinishedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (ProspectsFile) TableName() string {
	return "prospects_files"
}
