package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/device-session-guard/internal/domain"
	"github.com/sandeepkv93/device-session-guard/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrRefreshRecordNotFound = errors.New("refresh record not found")

type RefreshTokenRepository interface {
	Upsert(ctx context.Context, userID uint, hash string, createdAt time.Time) error
	FindByHash(ctx context.Context, hash string) (*domain.RefreshRecord, error)
	DeleteByID(ctx context.Context, id uint) error
}

type GormRefreshTokenRepository struct{ db *gorm.DB }

func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &GormRefreshTokenRepository{db: db}
}

// Upsert replaces the user's single refresh record. Concurrent issuances for the same
// user resolve last writer wins.
func (r *GormRefreshTokenRepository) Upsert(ctx context.Context, userID uint, hash string, createdAt time.Time) error {
	rec := domain.RefreshRecord{UserID: userID, Hash: hash, CreatedAt: createdAt}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"hash", "created_at"}),
	}).Create(&rec).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "refresh_token", "upsert", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "refresh_token", "upsert", "success")
	return nil
}

func (r *GormRefreshTokenRepository) FindByHash(ctx context.Context, hash string) (*domain.RefreshRecord, error) {
	var rec domain.RefreshRecord
	err := r.db.WithContext(ctx).Where("hash = ?", hash).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "refresh_token", "find_by_hash", "not_found")
			return nil, ErrRefreshRecordNotFound
		}
		observability.RecordRepositoryOperation(ctx, "refresh_token", "find_by_hash", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "refresh_token", "find_by_hash", "success")
	return &rec, nil
}

func (r *GormRefreshTokenRepository) DeleteByID(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Delete(&domain.RefreshRecord{}, id).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "refresh_token", "delete_by_id", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "refresh_token", "delete_by_id", "success")
	return nil
}
