package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sandeepkv93/device-session-guard/internal/domain"
	"github.com/sandeepkv93/device-session-guard/internal/observability"
	"github.com/sandeepkv93/device-session-guard/internal/repository"
	"github.com/sandeepkv93/device-session-guard/internal/security"

	"go.opentelemetry.io/otel/attribute"
)

type AuthRequest struct {
	Token string
	Route string
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID          uint   `json:"id"`
	RoleID          uint   `json:"role"`
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	RoleName        string `json:"role_name"`
	RoleDisplayName string `json:"role_display_name"`
	SessionID       uint   `json:"-"`
	AccessToken     string `json:"-"`
	// LogoutBypass is set when the request was admitted only because it targets the
	// logout route.
	LogoutBypass bool `json:"-"`
}

type AuthGuardConfig struct {
	LogoutRoute      string
	NegativeCacheTTL time.Duration
}

// AuthGuard makes the per-request admit/reject decision.
type AuthGuard struct {
	jwt        *security.JWTManager
	sessions   repository.SessionRepository
	users      repository.UserRepository
	rejections NegativeLookupCacheStore
	cfg        AuthGuardConfig
}

func NewAuthGuard(
	jwtMgr *security.JWTManager,
	sessions repository.SessionRepository,
	users repository.UserRepository,
	rejections NegativeLookupCacheStore,
	cfg AuthGuardConfig,
) *AuthGuard {
	if rejections == nil {
		rejections = NewNoopNegativeLookupCacheStore()
	}
	cfg.LogoutRoute = strings.Trim(cfg.LogoutRoute, "/")
	return &AuthGuard{jwt: jwtMgr, sessions: sessions, users: users, rejections: rejections, cfg: cfg}
}

func (g *AuthGuard) VerifyRequest(ctx context.Context, req AuthRequest) (*Principal, error) {
	ctx, span := observability.StartSpan(ctx, "auth_guard.verify_request")
	defer span.End()

	p, reason, err := g.verify(ctx, req)
	if err != nil {
		span.SetAttributes(attribute.String("auth.reject_reason", reason))
		observability.RecordAccessTokenValidation(ctx, "rejected", reason)
		return nil, err
	}
	outcome := "admitted"
	if p.LogoutBypass {
		outcome = "logout_bypass"
	}
	observability.RecordAccessTokenValidation(ctx, outcome, reason)
	return p, nil
}

func (g *AuthGuard) verify(ctx context.Context, req AuthRequest) (*Principal, string, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return nil, "missing_token", ErrMissingToken
	}

	cached, err := g.rejections.Get(ctx, rejectedTokenNamespace, token)
	if err != nil {
		slog.WarnContext(ctx, "negative cache read failed", "error", err)
		observability.RecordNegativeCacheEvent(ctx, "error")
	}

	var session *domain.Session
	if !cached {
		session, err = g.sessions.FindActiveByAccessToken(ctx, token)
		if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
			return nil, "store_error", storeError("find session", err)
		}
	} else {
		observability.RecordNegativeCacheEvent(ctx, "hit")
	}

	if session == nil {
		if g.isLogoutRoute(req.Route) {
			return g.logoutPrincipal(token), "logout_route", nil
		}
		if !cached {
			g.rememberRejection(ctx, token)
		}
		return nil, "session_not_found", ErrSessionInvalidated
	}

	res := g.jwt.Verify(token)
	if !res.Valid() {
		if g.isLogoutRoute(req.Route) {
			return g.logoutPrincipal(token), "logout_route", nil
		}
		return nil, "token_" + res.Reason, ErrInvalidToken
	}
	if res.Claims.UserID != session.UserID {
		return nil, "owner_mismatch", ErrInvalidToken
	}

	user, err := g.users.FindActiveByID(ctx, res.Claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "user_inactive", ErrInvalidToken
		}
		return nil, "store_error", storeError("find user", err)
	}

	p := &Principal{
		UserID:      user.ID,
		RoleID:      res.Claims.RoleID,
		Email:       user.Email,
		FullName:    user.FullName,
		SessionID:   session.ID,
		AccessToken: token,
	}
	if user.Role != nil {
		p.RoleName = user.Role.Name
		p.RoleDisplayName = user.Role.DisplayName
	}
	return p, "ok", nil
}

func (g *AuthGuard) isLogoutRoute(route string) bool {
	route = strings.TrimRight(route, "/")
	if i := strings.LastIndex(route, "/"); i >= 0 {
		route = route[i+1:]
	}
	return route != "" && route == g.cfg.LogoutRoute
}

// Logout is always admitted. The principal carries only the presented token; no identity
// is derived from a token that failed verification.
func (g *AuthGuard) logoutPrincipal(token string) *Principal {
	return &Principal{AccessToken: token, LogoutBypass: true}
}

func (g *AuthGuard) rememberRejection(ctx context.Context, token string) {
	if err := g.rejections.Set(ctx, rejectedTokenNamespace, token, g.cfg.NegativeCacheTTL); err != nil {
		slog.WarnContext(ctx, "negative cache write failed", "error", err)
		observability.RecordNegativeCacheEvent(ctx, "error")
		return
	}
	observability.RecordNegativeCacheEvent(ctx, "store")
}
