package domain

import "time"

// RefreshRecord holds the single live refresh credential hash for a user.
type RefreshRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Hash      string    `gorm:"size:128;uniqueIndex;not null" json:"-"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (RefreshRecord) TableName() string { return "refresh_tokens" }
