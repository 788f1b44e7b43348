package domain

import "time"

const DefaultUserRole = "user"

type Role struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:64;index;not null" json:"role"`
	DisplayName string    `gorm:"size:128;not null" json:"role_display_name"`
	Status      string    `gorm:"size:16;not null;default:Active" json:"status"`
	IsDeleted   bool      `gorm:"index;not null;default:false" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
