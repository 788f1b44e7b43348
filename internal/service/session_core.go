package service

import (
	"context"
	"strings"

	"github.com/sandeepkv93/device-session-guard/internal/domain"
	"github.com/sandeepkv93/device-session-guard/internal/observability"
	"github.com/sandeepkv93/device-session-guard/internal/repository"
)

// Core wires the session components into SessionCore.
type Core struct {
	issuer   *TokenIssuer
	guard    *AuthGuard
	flow     *RefreshFlow
	sweeper  *SessionSweeper
	sessions repository.SessionRepository
}

func NewCore(issuer *TokenIssuer, guard *AuthGuard, flow *RefreshFlow, sweeper *SessionSweeper, sessions repository.SessionRepository) *Core {
	return &Core{issuer: issuer, guard: guard, flow: flow, sweeper: sweeper, sessions: sessions}
}

var _ SessionCore = (*Core)(nil)

func (c *Core) Issue(ctx context.Context, user *domain.User, device DeviceContext) (*TokenPair, error) {
	return c.issuer.Issue(ctx, user, device)
}

func (c *Core) VerifyRequest(ctx context.Context, req AuthRequest) (*Principal, error) {
	return c.guard.VerifyRequest(ctx, req)
}

func (c *Core) Refresh(ctx context.Context, req RefreshRequest) (*TokenPair, error) {
	return c.flow.Refresh(ctx, req)
}

// Logout marks the session holding accessToken as logged out. An unknown token is not
// an error.
func (c *Core) Logout(ctx context.Context, accessToken string) error {
	ctx, span := observability.StartSpan(ctx, "session_core.logout")
	defer span.End()

	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		observability.RecordAuthLogout(ctx, "noop")
		return nil
	}
	found, err := c.sessions.MarkLoggedOut(ctx, accessToken)
	if err != nil {
		observability.RecordAuthLogout(ctx, "error")
		return storeError("logout", err)
	}
	if !found {
		observability.RecordAuthLogout(ctx, "noop")
		return nil
	}
	observability.RecordAuthLogout(ctx, "success")
	return nil
}

func (c *Core) InvalidateStale(ctx context.Context, userID uint) SweepReport {
	return c.sweeper.InvalidateStale(ctx, userID)
}
