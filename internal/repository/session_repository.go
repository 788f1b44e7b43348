package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/device-session-guard/internal/domain"
	"github.com/sandeepkv93/device-session-guard/internal/observability"

	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("session not found")

// DeviceAttributes are the client-reported fields rewritten on every issuance.
type DeviceAttributes struct {
	DeviceToken string
	UserAgent   string
	IP          string
	Latitude    string
	Longitude   string
	State       string
	Country     string
	City        string
	Timezone    string
}

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	FindByAccessToken(ctx context.Context, accessToken string) (*domain.Session, error)
	FindActiveByAccessToken(ctx context.Context, accessToken string) (*domain.Session, error)
	FindLiveByAccessToken(ctx context.Context, accessToken string) (*domain.Session, error)
	UpdateDevice(ctx context.Context, id uint, accessToken string, attrs DeviceAttributes, lastActive time.Time) error
	ListUnexpiredByUserID(ctx context.Context, userID uint) ([]domain.Session, error)
	ListActiveByUserID(ctx context.Context, userID uint, req PageRequest) (PageResult[domain.Session], error)
	MarkExpired(ctx context.Context, id uint, staleToken string) (bool, error)
	MarkLoggedOut(ctx context.Context, accessToken string) (bool, error)
	SoftDelete(ctx context.Context, id, userID uint) (bool, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	err := r.db.WithContext(ctx).Create(s).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "session", "create", "success")
	return nil
}

// FindByAccessToken is the correlation lookup used when re-issuing for a known device.
// It applies no state filters.
func (r *GormSessionRepository) FindByAccessToken(ctx context.Context, accessToken string) (*domain.Session, error) {
	return r.findOne(ctx, "find_by_access_token", r.db.WithContext(ctx).Where("access_token = ?", accessToken))
}

func (r *GormSessionRepository) FindActiveByAccessToken(ctx context.Context, accessToken string) (*domain.Session, error) {
	q := r.db.WithContext(ctx).
		Where("access_token = ? AND expired = ? AND is_logged_out = ? AND is_deleted = ?", accessToken, false, false, false)
	return r.findOne(ctx, "find_active_by_access_token", q)
}

// FindLiveByAccessToken ignores the expired flag; a swept session can still be refreshed.
func (r *GormSessionRepository) FindLiveByAccessToken(ctx context.Context, accessToken string) (*domain.Session, error) {
	q := r.db.WithContext(ctx).
		Where("access_token = ? AND is_logged_out = ? AND is_deleted = ?", accessToken, false, false)
	return r.findOne(ctx, "find_live_by_access_token", q)
}

func (r *GormSessionRepository) findOne(ctx context.Context, op string, q *gorm.DB) (*domain.Session, error) {
	var s domain.Session
	err := q.First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "session", op, "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(ctx, "session", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "session", op, "success")
	return &s, nil
}

func (r *GormSessionRepository) UpdateDevice(ctx context.Context, id uint, accessToken string, attrs DeviceAttributes, lastActive time.Time) error {
	updates := map[string]any{
		"access_token": accessToken,
		"device_token": attrs.DeviceToken,
		"user_agent":   attrs.UserAgent,
		"ip":           attrs.IP,
		"latitude":     attrs.Latitude,
		"longitude":    attrs.Longitude,
		"state":        attrs.State,
		"country":      attrs.Country,
		"city":         attrs.City,
		"timezone":     attrs.Timezone,
		"last_active":  lastActive,
		"expired":      false,
	}
	res := r.db.WithContext(ctx).Model(&domain.Session{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "update_device", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "session", "update_device", "not_found")
		return ErrSessionNotFound
	}
	observability.RecordRepositoryOperation(ctx, "session", "update_device", "success")
	return nil
}

func (r *GormSessionRepository) ListUnexpiredByUserID(ctx context.Context, userID uint) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND expired = ? AND is_deleted = ?", userID, false, false).
		Order("id ASC").
		Find(&sessions).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "list_unexpired_by_user_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "list_unexpired_by_user_id", "success")
	return sessions, nil
}

func (r *GormSessionRepository) ListActiveByUserID(ctx context.Context, userID uint, req PageRequest) (PageResult[domain.Session], error) {
	req = req.Normalize()
	base := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("user_id = ? AND expired = ? AND is_logged_out = ? AND is_deleted = ?", userID, false, false, false).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "list_active_by_user_id", "error")
		return PageResult[domain.Session]{}, err
	}
	var items []domain.Session
	if err := base.Order("last_active DESC").Order("id DESC").Offset(req.Offset()).Limit(req.PageSize).Find(&items).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "list_active_by_user_id", "error")
		return PageResult[domain.Session]{}, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "list_active_by_user_id", "success")
	return newPageResult(req, total, items), nil
}

// MarkExpired expires the row only while it still holds staleToken, so a rotation that
// lands after the token was checked is left alone. It reports whether a row changed.
func (r *GormSessionRepository) MarkExpired(ctx context.Context, id uint, staleToken string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND access_token = ? AND expired = ?", id, staleToken, false).
		Update("expired", true)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "mark_expired", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "mark_expired", "success")
	return res.RowsAffected > 0, nil
}

// MarkLoggedOut reports whether a session with that token existed.
func (r *GormSessionRepository) MarkLoggedOut(ctx context.Context, accessToken string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("access_token = ?", accessToken).
		Update("is_logged_out", true)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "mark_logged_out", "error")
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "session", "mark_logged_out", "not_found")
		return false, nil
	}
	observability.RecordRepositoryOperation(ctx, "session", "mark_logged_out", "success")
	return true, nil
}

func (r *GormSessionRepository) SoftDelete(ctx context.Context, id, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND user_id = ? AND is_deleted = ?", id, userID, false).
		Update("is_deleted", true)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "soft_delete", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "soft_delete", "success")
	return res.RowsAffected > 0, nil
}
