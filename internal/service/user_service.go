package service

import (
	"context"
	"errors"

	"github.com/sandeepkv93/device-session-guard/internal/domain"
	"github.com/sandeepkv93/device-session-guard/internal/repository"
	"github.com/sandeepkv93/device-session-guard/internal/security"
)

type SessionPage = repository.PageResult[domain.Session]

type UserService struct {
	users     repository.UserRepository
	sessions  repository.SessionRepository
	passwords security.PasswordVerifier
}

func NewUserService(users repository.UserRepository, sessions repository.SessionRepository, passwords security.PasswordVerifier) *UserService {
	return &UserService{users: users, sessions: sessions, passwords: passwords}
}

func (s *UserService) Profile(ctx context.Context, userID uint) (*domain.User, error) {
	u, err := s.users.FindActiveByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeError("find user", err)
	}
	return u, nil
}

func (s *UserService) ListSessions(ctx context.Context, userID uint, page, pageSize int) (*SessionPage, error) {
	res, err := s.sessions.ListActiveByUserID(ctx, userID, repository.PageRequest{Page: page, PageSize: pageSize})
	if err != nil {
		return nil, storeError("list sessions", err)
	}
	return &res, nil
}

// RevokeSession soft-deletes one of the user's own device sessions. Revoking the
// session that made the request behaves like logout for that device.
func (s *UserService) RevokeSession(ctx context.Context, userID, sessionID uint) error {
	if sessionID == 0 {
		return validationError("session id is required")
	}
	ok, err := s.sessions.SoftDelete(ctx, sessionID, userID)
	if err != nil {
		return storeError("revoke session", err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// ChangePassword does not touch existing sessions. Passwords are used exactly as sent,
// matching LoginUser.
func (s *UserService) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return validationError("old password and new password are required")
	}
	u, err := s.users.FindActiveByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return storeError("find user", err)
	}
	if err := s.passwords.Verify(u.PasswordHash, oldPassword); err != nil {
		return validationError("old password mismatch")
	}
	hash, err := security.HashPassword(newPassword, 0)
	if err != nil {
		return &Error{Kind: KindTransientStore, Message: "hash password failed", Err: err}
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return storeError("update password", err)
	}
	return nil
}
