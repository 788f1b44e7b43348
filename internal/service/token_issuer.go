package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sandeepkv93/device-session-guard/internal/domain"
	"github.com/sandeepkv93/device-session-guard/internal/observability"
	"github.com/sandeepkv93/device-session-guard/internal/repository"
	"github.com/sandeepkv93/device-session-guard/internal/security"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type TokenIssuerConfig struct {
	AccessTTL              time.Duration
	Pepper                 string
	CreateUnmatchedSession bool
}

// TokenIssuer mints access/refresh pairs and records the issuing device.
// Vault upsert and session upsert are separate writes; a token whose session write
// failed is rejected by the guard until the device signs in again.
type TokenIssuer struct {
	jwt        *security.JWTManager
	sessions   repository.SessionRepository
	vault      repository.RefreshTokenRepository
	sweeper    SweepDispatcher
	rejections NegativeLookupCacheStore
	geo        GeoLocator
	cfg        TokenIssuerConfig
	now        func() time.Time
}

func NewTokenIssuer(
	jwtMgr *security.JWTManager,
	sessions repository.SessionRepository,
	vault repository.RefreshTokenRepository,
	sweeper SweepDispatcher,
	rejections NegativeLookupCacheStore,
	geo GeoLocator,
	cfg TokenIssuerConfig,
) *TokenIssuer {
	if rejections == nil {
		rejections = NewNoopNegativeLookupCacheStore()
	}
	if geo == nil {
		geo = NoopGeoLocator{}
	}
	return &TokenIssuer{
		jwt:        jwtMgr,
		sessions:   sessions,
		vault:      vault,
		sweeper:    sweeper,
		rejections: rejections,
		geo:        geo,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (t *TokenIssuer) Issue(ctx context.Context, user *domain.User, device DeviceContext) (*TokenPair, error) {
	ctx, span := observability.StartSpan(ctx, "token_issuer.issue", attribute.Int("user.id", int(user.ID)))
	defer span.End()

	pair, err := t.issue(ctx, user, device)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue failed")
		observability.RecordAuthIssue(ctx, issueSource(device), "error")
		return nil, err
	}
	observability.RecordAuthIssue(ctx, issueSource(device), "success")

	if t.sweeper != nil {
		t.sweeper.Dispatch(user.ID)
	}
	return pair, nil
}

func (t *TokenIssuer) issue(ctx context.Context, user *domain.User, device DeviceContext) (*TokenPair, error) {
	access, err := t.jwt.SignAccessToken(user.ID, user.RoleID, t.cfg.AccessTTL)
	if err != nil {
		return nil, &Error{Kind: KindTransientStore, Message: "sign access token failed", Err: err}
	}
	salt, err := security.NewRefreshSalt()
	if err != nil {
		return nil, &Error{Kind: KindTransientStore, Message: "generate refresh token failed", Err: err}
	}
	now := t.now().UTC()
	hash := security.HashRefreshToken(access, salt, t.cfg.Pepper)
	if err := t.vault.Upsert(ctx, user.ID, hash, now); err != nil {
		return nil, storeError("store refresh token", err)
	}
	if err := t.upsertSession(ctx, user.ID, access, device, now); err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: salt,
		ExpiresIn:    int64(t.cfg.AccessTTL.Seconds()),
	}, nil
}

func (t *TokenIssuer) upsertSession(ctx context.Context, userID uint, access string, device DeviceContext, now time.Time) error {
	geo, err := t.geo.Locate(ctx, device.IP)
	if err != nil {
		slog.WarnContext(ctx, "geo lookup failed", "ip", device.IP, "error", err)
		geo = GeoInfo{}
	}
	attrs := device.attributes(geo)

	if device.CorrelationToken != "" {
		existing, err := t.sessions.FindByAccessToken(ctx, device.CorrelationToken)
		switch {
		case err == nil && existing.UserID == userID:
			if err := t.sessions.UpdateDevice(ctx, existing.ID, access, attrs, now); err != nil {
				return storeError("update session", err)
			}
			t.forgetRejection(ctx, access)
			return nil
		case err == nil:
			slog.WarnContext(ctx, "correlation token owned by another user", "user_id", userID, "owner_id", existing.UserID)
		case !errors.Is(err, repository.ErrSessionNotFound):
			return storeError("find session", err)
		}
	}

	if !t.cfg.CreateUnmatchedSession {
		slog.InfoContext(ctx, "no session recorded for unmatched device", "user_id", userID)
		return nil
	}
	s := &domain.Session{
		UserID:      userID,
		AccessToken: access,
		DeviceToken: attrs.DeviceToken,
		UserAgent:   attrs.UserAgent,
		IP:          attrs.IP,
		Latitude:    attrs.Latitude,
		Longitude:   attrs.Longitude,
		State:       attrs.State,
		Country:     attrs.Country,
		City:        attrs.City,
		Timezone:    attrs.Timezone,
		LastActive:  now,
	}
	if err := t.sessions.Create(ctx, s); err != nil {
		return storeError("create session", err)
	}
	t.forgetRejection(ctx, access)
	return nil
}

// A request racing the session write may have cached a rejection for this token.
func (t *TokenIssuer) forgetRejection(ctx context.Context, access string) {
	if err := t.rejections.Delete(ctx, rejectedTokenNamespace, access); err != nil {
		slog.WarnContext(ctx, "negative cache delete failed", "error", err)
	}
}

func issueSource(device DeviceContext) string {
	if device.CorrelationToken != "" {
		return "rotation"
	}
	return "login"
}
