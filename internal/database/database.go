// Package database opens the relational store and the optional Redis client.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/device-session-guard/internal/config"
	"github.com/sandeepkv93/device-session-guard/internal/domain"
)

func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseURL)
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "file:device_session_guard?mode=memory&cache=shared"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	if cfg.DBDriver == "sqlite" {
		// one connection keeps a shared in-memory database alive and serializes writers
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&domain.Role{},
		&domain.User{},
		&domain.Session{},
		&domain.RefreshRecord{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// SeedDefaultRole creates the role assigned to social sign-up users when it is missing.
// It reports whether a row was created.
func SeedDefaultRole(ctx context.Context, db *gorm.DB) (bool, error) {
	var role domain.Role
	err := db.WithContext(ctx).Where("name = ? AND is_deleted = ?", domain.DefaultUserRole, false).First(&role).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("find default role: %w", err)
	}
	role = domain.Role{Name: domain.DefaultUserRole, DisplayName: "User", Status: "Active"}
	if err := db.WithContext(ctx).Create(&role).Error; err != nil {
		return false, fmt.Errorf("create default role: %w", err)
	}
	slog.InfoContext(ctx, "seeded default role", "role", role.Name, "role_id", role.ID)
	return true, nil
}

// NewRedisClient returns nil when no Redis address is configured.
func NewRedisClient(ctx context.Context, cfg *config.Config) (redis.UniversalClient, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}
