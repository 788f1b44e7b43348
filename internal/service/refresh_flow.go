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

type RefreshRequest struct {
	AccessToken  string
	RefreshToken string
	Device       DeviceContext
}

type RefreshFlowConfig struct {
	Pepper        string
	RefreshTTL    time.Duration
	RememberMeTTL time.Duration
}

type Issuer interface {
	Issue(ctx context.Context, user *domain.User, device DeviceContext) (*TokenPair, error)
}

// RefreshFlow rotates a token pair. The presented access token is not verified here; an
// expired access token is the normal case. Possession is proven by the refresh hash.
type RefreshFlow struct {
	sessions repository.SessionRepository
	vault    repository.RefreshTokenRepository
	users    repository.UserRepository
	issuer   Issuer
	cfg      RefreshFlowConfig
	now      func() time.Time
}

func NewRefreshFlow(
	sessions repository.SessionRepository,
	vault repository.RefreshTokenRepository,
	users repository.UserRepository,
	issuer Issuer,
	cfg RefreshFlowConfig,
) *RefreshFlow {
	return &RefreshFlow{sessions: sessions, vault: vault, users: users, issuer: issuer, cfg: cfg, now: time.Now}
}

func (f *RefreshFlow) Refresh(ctx context.Context, req RefreshRequest) (*TokenPair, error) {
	ctx, span := observability.StartSpan(ctx, "refresh_flow.refresh")
	defer span.End()

	pair, stage, err := f.refresh(ctx, req)
	if err != nil {
		span.SetAttributes(attribute.String("refresh.failed_stage", stage))
		observability.RecordAuthRefresh(ctx, stage)
		return nil, err
	}
	observability.RecordAuthRefresh(ctx, "success")
	return pair, nil
}

func (f *RefreshFlow) refresh(ctx context.Context, req RefreshRequest) (*TokenPair, string, error) {
	access := strings.TrimSpace(req.AccessToken)
	salt := strings.TrimSpace(req.RefreshToken)
	if access == "" || salt == "" {
		return nil, "validation", validationError("access token and refresh token are required")
	}

	session, err := f.sessions.FindLiveByAccessToken(ctx, access)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, "session_check", ErrSessionInvalidated
		}
		return nil, "store_error", storeError("find session", err)
	}

	hash := security.HashRefreshToken(access, salt, f.cfg.Pepper)
	rec, err := f.vault.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshRecordNotFound) {
			return nil, "hash_check", ErrInvalidToken
		}
		return nil, "store_error", storeError("find refresh token", err)
	}
	if rec.UserID != session.UserID {
		slog.WarnContext(ctx, "refresh record owner mismatch", "session_user_id", session.UserID, "record_user_id", rec.UserID)
		return nil, "hash_check", ErrInvalidToken
	}

	user, err := f.users.FindActiveByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "expiry_check", ErrInvalidToken
		}
		return nil, "store_error", storeError("find user", err)
	}
	window := f.cfg.RefreshTTL
	if user.RememberMe {
		window = f.cfg.RememberMeTTL
	}
	if !f.now().Before(rec.CreatedAt.Add(window)) {
		if err := f.vault.DeleteByID(ctx, rec.ID); err != nil {
			slog.WarnContext(ctx, "delete expired refresh record failed", "user_id", user.ID, "error", err)
		}
		return nil, "expired", ErrRefreshTokenExpired
	}

	device := req.Device
	device.CorrelationToken = access
	pair, err := f.issuer.Issue(ctx, user, device)
	if err != nil {
		return nil, "rotate", err
	}
	return pair, "", nil
}
