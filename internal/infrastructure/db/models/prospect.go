package models

import "time"

type Prospect struct {
	ID        int64  `gorm:"primaryKey"`
	OwnerID   int64  `gorm:"not null;uniqueIndex:idx_prospects_owner_email,priority:1"`
	Email     string `gorm:"size:320;not null;uniqueIndex:idx_prospects_owner_email,priority:2"`
	FirstName string `gorm:"type:text;not null"`
	LastName  string `gorm:"type:text;not null"`
	FileID    *int64 `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Prospect) TableName() string {
	return "prospects"
}
