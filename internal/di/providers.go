package di

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gorm.io/gorm"

	"github.com/sandeepkv93/device-session-guard/internal/app"
	"github.com/sandeepkv93/device-session-guard/internal/config"
	"github.com/sandeepkv93/device-session-guard/internal/database"
	"github.com/sandeepkv93/device-session-guard/internal/health"
	"github.com/sandeepkv93/device-session-guard/internal/http/handler"
	"github.com/sandeepkv93/device-session-guard/internal/http/middleware"
	"github.com/sandeepkv93/device-session-guard/internal/http/router"
	"github.com/sandeepkv93/device-session-guard/internal/observability"
	"github.com/sandeepkv93/device-session-guard/internal/repository"
	"github.com/sandeepkv93/device-session-guard/internal/security"
	"github.com/sandeepkv93/device-session-guard/internal/service"
)

var StoreSet = wire.NewSet(
	provideDB,
	provideRedis,
	repository.NewSessionRepository,
	repository.NewRefreshTokenRepository,
	repository.NewUserRepository,
	repository.NewRoleRepository,
)

var SessionSet = wire.NewSet(
	provideJWTManager,
	provideNegativeLookupCache,
	provideSessionSweeper,
	provideTokenIssuer,
	provideAuthGuard,
	provideRefreshFlow,
	service.NewCore,
	wire.Bind(new(service.SessionCore), new(*service.Core)),
	wire.Bind(new(service.RequestVerifier), new(*service.Core)),
)

var HTTPSet = wire.NewSet(
	providePasswordVerifier,
	provideIdentityVerifier,
	service.NewAuthService,
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	service.NewUserService,
	wire.Bind(new(service.UserServiceInterface), new(*service.UserService)),
	handler.NewAuthHandler,
	handler.NewUserHandler,
	provideRefreshLimiter,
	provideReadiness,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
	provideObservability,
	provideApp,
)

func provideDB(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, cleanup, nil
}

func provideRedis(ctx context.Context, cfg *config.Config) (redis.UniversalClient, func(), error) {
	client, err := database.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if client != nil {
			_ = client.Close()
		}
	}
	return client, cleanup, nil
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSecret)
}

// Rejections are shared across replicas only when Redis is configured.
func provideNegativeLookupCache(client redis.UniversalClient) service.NegativeLookupCacheStore {
	if client == nil {
		return service.NewInMemoryNegativeLookupCacheStore()
	}
	return service.NewRedisNegativeLookupCacheStore(client, "dsg_negative_lookup")
}

func provideSessionSweeper(cfg *config.Config, jwtMgr *security.JWTManager, sessions repository.SessionRepository) *service.SessionSweeper {
	return service.NewSessionSweeper(jwtMgr, sessions, cfg.SweepTimeout)
}

func provideTokenIssuer(
	cfg *config.Config,
	jwtMgr *security.JWTManager,
	sessions repository.SessionRepository,
	vault repository.RefreshTokenRepository,
	sweeper *service.SessionSweeper,
	rejections service.NegativeLookupCacheStore,
) *service.TokenIssuer {
	return service.NewTokenIssuer(jwtMgr, sessions, vault, sweeper, rejections, service.NoopGeoLocator{}, service.TokenIssuerConfig{
		AccessTTL:              cfg.JWTAccessTTL,
		Pepper:                 cfg.RefreshHashPepper,
		CreateUnmatchedSession: cfg.AuthCreateUnmatchedSessions,
	})
}

func provideAuthGuard(
	cfg *config.Config,
	jwtMgr *security.JWTManager,
	sessions repository.SessionRepository,
	users repository.UserRepository,
	rejections service.NegativeLookupCacheStore,
) *service.AuthGuard {
	return service.NewAuthGuard(jwtMgr, sessions, users, rejections, service.AuthGuardConfig{
		LogoutRoute:      cfg.AuthLogoutRoute,
		NegativeCacheTTL: cfg.NegativeCacheTTL,
	})
}

func provideRefreshFlow(
	cfg *config.Config,
	sessions repository.SessionRepository,
	vault repository.RefreshTokenRepository,
	users repository.UserRepository,
	issuer *service.TokenIssuer,
) *service.RefreshFlow {
	return service.NewRefreshFlow(sessions, vault, users, issuer, service.RefreshFlowConfig{
		Pepper:        cfg.RefreshHashPepper,
		RefreshTTL:    cfg.RefreshTTL,
		RememberMeTTL: cfg.RefreshRememberMeTTL,
	})
}

func providePasswordVerifier() security.PasswordVerifier {
	return security.BcryptVerifier{}
}

func provideIdentityVerifier(cfg *config.Config) service.IdentityVerifier {
	client := &http.Client{Timeout: 10 * time.Second}
	return service.NewGoogleIdentityVerifier(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleUserInfoURL, client)
}

// A Redis outage must not lock every device out of refresh, so the shared limiter fails
// open; the local limiter cannot fail.
func provideRefreshLimiter(cfg *config.Config, client redis.UniversalClient) router.RefreshRateLimiterFunc {
	policy := middleware.RateLimitPolicy{Limit: cfg.RefreshRateLimitPerMinute, Window: time.Minute}
	if client == nil {
		return middleware.NewRateLimiter(middleware.NewLocalFixedWindowLimiter(), policy, middleware.FailClosed, "refresh").Middleware()
	}
	limiter := middleware.NewRedisFixedWindowLimiter(client, "dsg_rl")
	return middleware.NewRateLimiter(limiter, policy, middleware.FailOpen, "refresh").Middleware()
}

func provideReadiness(db *gorm.DB, client redis.UniversalClient) *health.ProbeRunner {
	checkers := []health.Checker{health.DBChecker(db)}
	if client != nil {
		checkers = append(checkers, health.RedisChecker(client))
	}
	return health.NewProbeRunner(2*time.Second, checkers...)
}

func provideRouterDependencies(
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	verifier service.RequestVerifier,
	refreshLimiter router.RefreshRateLimiterFunc,
	readiness *health.ProbeRunner,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:    authHandler,
		UserHandler:    userHandler,
		Verifier:       verifier,
		LogoutRoute:    cfg.AuthLogoutRoute,
		RefreshLimiter: refreshLimiter,
		Readiness:      readiness,
		EnableOTelHTTP: cfg.OTELTracingEnabled || cfg.OTELMetricsEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func provideObservability(ctx context.Context, cfg *config.Config, lp *sdklog.LoggerProvider) (*observability.Runtime, error) {
	return observability.InitRuntime(ctx, cfg, slog.Default(), lp)
}

func provideApp(cfg *config.Config, server *http.Server, rt *observability.Runtime, sweeper *service.SessionSweeper) *app.App {
	return app.New(cfg, server, rt, sweeper)
}
