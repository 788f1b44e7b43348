package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/sandeepkv93/device-session-guard/internal/domain"
	"github.com/sandeepkv93/device-session-guard/internal/observability"

	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	FindByID(ctx context.Context, id uint) (*domain.User, error)
	FindActiveByID(ctx context.Context, id uint) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	UpdateRememberMe(ctx context.Context, id uint, rememberMe bool) error
	UpdatePassword(ctx context.Context, id uint, passwordHash string) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	return r.findOne(ctx, "find_by_id", r.db.WithContext(ctx).Preload("Role").Where("id = ?", id))
}

// FindActiveByID returns the user only when the account is Active and not deleted.
func (r *GormUserRepository) FindActiveByID(ctx context.Context, id uint) (*domain.User, error) {
	q := r.db.WithContext(ctx).Preload("Role").
		Where("id = ? AND status = ? AND is_deleted = ?", id, domain.UserStatusActive, false)
	return r.findOne(ctx, "find_active_by_id", q)
}

// FindByEmail matches case-insensitively among non-deleted users.
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	q := r.db.WithContext(ctx).Preload("Role").
		Where("LOWER(email) = ? AND is_deleted = ?", strings.ToLower(strings.TrimSpace(email)), false)
	return r.findOne(ctx, "find_by_email", q)
}

func (r *GormUserRepository) findOne(ctx context.Context, op string, q *gorm.DB) (*domain.User, error) {
	var u domain.User
	err := q.First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "user", op, "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(ctx, "user", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "user", op, "success")
	return &u, nil
}

func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	err := r.db.WithContext(ctx).Omit("Role").Create(user).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "user", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "user", "create", "success")
	return nil
}

func (r *GormUserRepository) UpdateRememberMe(ctx context.Context, id uint, rememberMe bool) error {
	err := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("remember_me", rememberMe).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "user", "update_remember_me", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "user", "update_remember_me", "success")
	return nil
}

func (r *GormUserRepository) UpdatePassword(ctx context.Context, id uint, passwordHash string) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ? AND is_deleted = ?", id, false).Update("password_hash", passwordHash)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "user", "update_password", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "user", "update_password", "not_found")
		return ErrUserNotFound
	}
	observability.RecordRepositoryOperation(ctx, "user", "update_password", "success")
	return nil
}
