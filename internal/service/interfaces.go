package service

import (
	"context"

	"github.com/sandeepkv93/device-session-guard/internal/domain"
)

// SessionCore is the session subsystem surface consumed by the HTTP layer and the CLI.
type SessionCore interface {
	Issue(ctx context.Context, user *domain.User, device DeviceContext) (*TokenPair, error)
	VerifyRequest(ctx context.Context, req AuthRequest) (*Principal, error)
	Refresh(ctx context.Context, req RefreshRequest) (*TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
	InvalidateStale(ctx context.Context, userID uint) SweepReport
}

type AuthServiceInterface interface {
	SocialSignIn(ctx context.Context, req SocialSignInRequest) (*LoginResult, error)
	LoginUser(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Refresh(ctx context.Context, req RefreshRequest) (*TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
}

type UserServiceInterface interface {
	Profile(ctx context.Context, userID uint) (*domain.User, error)
	ListSessions(ctx context.Context, userID uint, page, pageSize int) (*SessionPage, error)
	RevokeSession(ctx context.Context, userID, sessionID uint) error
	ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error
}

type RequestVerifier interface {
	VerifyRequest(ctx context.Context, req AuthRequest) (*Principal, error)
}

// SweepDispatcher starts a background reconciliation for one user without waiting for it.
type SweepDispatcher interface {
	Dispatch(userID uint)
}
