package repository

import (
	"context"
	"errors"

	"github.com/sandeepkv93/device-session-guard/internal/domain"
	"github.com/sandeepkv93/device-session-guard/internal/observability"

	"gorm.io/gorm"
)

var ErrRoleNotFound = errors.New("role not found")

type RoleRepository interface {
	FindByID(ctx context.Context, id uint) (*domain.Role, error)
	FindByName(ctx context.Context, name string) (*domain.Role, error)
	Create(ctx context.Context, role *domain.Role) error
}

type GormRoleRepository struct{ db *gorm.DB }

func NewRoleRepository(db *gorm.DB) RoleRepository { return &GormRoleRepository{db: db} }

func (r *GormRoleRepository) FindByID(ctx context.Context, id uint) (*domain.Role, error) {
	var role domain.Role
	err := r.db.WithContext(ctx).Where("id = ? AND is_deleted = ?", id, false).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "role", "find_by_id", "not_found")
			return nil, ErrRoleNotFound
		}
		observability.RecordRepositoryOperation(ctx, "role", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "role", "find_by_id", "success")
	return &role, nil
}

func (r *GormRoleRepository) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	var role domain.Role
	err := r.db.WithContext(ctx).Where("name = ? AND is_deleted = ?", name, false).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "role", "find_by_name", "not_found")
			return nil, ErrRoleNotFound
		}
		observability.RecordRepositoryOperation(ctx, "role", "find_by_name", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "role", "find_by_name", "success")
	return &role, nil
}

func (r *GormRoleRepository) Create(ctx context.Context, role *domain.Role) error {
	err := r.db.WithContext(ctx).Create(role).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "role", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "role", "create", "success")
	return nil
}
