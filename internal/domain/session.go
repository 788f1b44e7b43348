package domain

import "time"

// Session is the server-side record of one device's currently trusted access token.
type Session struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	AccessToken string    `gorm:"size:2048;uniqueIndex;not null" json:"-"`
	DeviceToken string    `gorm:"size:512" json:"device_token,omitempty"`
	UserAgent   string    `gorm:"size:512" json:"user_agent"`
	IP          string    `gorm:"size:64" json:"ip"`
	Latitude    string    `gorm:"size:32" json:"ip_lat"`
	Longitude   string    `gorm:"size:32" json:"ip_long"`
	State       string    `gorm:"size:128" json:"state"`
	Country     string    `gorm:"size:64" json:"country"`
	City        string    `gorm:"size:128" json:"city"`
	Timezone    string    `gorm:"size:64" json:"timezone"`
	Expired     bool      `gorm:"index;not null;default:false" json:"expired"`
	IsLoggedOut bool      `gorm:"index;not null;default:false" json:"is_logged_out"`
	IsDeleted   bool      `gorm:"index;not null;default:false" json:"-"`
	LastActive  time.Time `gorm:"index" json:"last_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "user_devices" }

// Admissible reports whether the session may still back an authenticated request.
func (s *Session) Admissible() bool {
	return s != nil && !s.Expired && !s.IsLoggedOut && !s.IsDeleted
}
