package domain

import "time"

const (
	UserStatusActive   = "Active"
	UserStatusInactive = "Inactive"
)

type User struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Email           string    `gorm:"size:320;index;not null" json:"email"`
	FullName        string    `gorm:"size:255" json:"full_name"`
	FirstName       string    `gorm:"size:128" json:"first_name"`
	LastName        string    `gorm:"size:128" json:"last_name"`
	PasswordHash    string    `gorm:"size:255" json:"-"`
	ProfileImage    string    `gorm:"size:1024" json:"profile_image,omitempty"`
	RoleID          uint      `gorm:"index" json:"role_id"`
	Role            *Role     `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	Status          string    `gorm:"size:16;index;not null;default:Active" json:"status"`
	IsDeleted       bool      `gorm:"index;not null;default:false" json:"-"`
	RememberMe      bool      `gorm:"not null;default:false" json:"remember_me"`
	AccountVerified bool      `gorm:"not null;default:false" json:"is_account_verified"`
	GoogleID        string    `gorm:"size:128;index" json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Active reports whether the account may authenticate.
func (u *User) Active() bool {
	return u != nil && u.Status == UserStatusActive && !u.IsDeleted
}
