//go:build !wireinject
// +build !wireinject

// Injectors for the provider sets in wire.go, maintained by hand in the shape wire emits.
// Keep both files in step when a provider changes.

package di

import (
	"context"

	"github.com/sandeepkv93/device-session-guard/internal/app"
	"github.com/sandeepkv93/device-session-guard/internal/config"
	"github.com/sandeepkv93/device-session-guard/internal/http/handler"
	"github.com/sandeepkv93/device-session-guard/internal/http/router"
	"github.com/sandeepkv93/device-session-guard/internal/repository"
	"github.com/sandeepkv93/device-session-guard/internal/service"
	"go.opentelemetry.io/otel/sdk/log"
)

// Injectors from wire.go:

func InitializeApp(ctx context.Context, cfg *config.Config, lp *log.LoggerProvider) (*app.App, func(), error) {
	db, cleanup, err := provideDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	universalClient, cleanup2, err := provideRedis(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	jwtManager := provideJWTManager(cfg)
	sessionRepository := repository.NewSessionRepository(db)
	refreshTokenRepository := repository.NewRefreshTokenRepository(db)
	userRepository := repository.NewUserRepository(db)
	roleRepository := repository.NewRoleRepository(db)
	negativeLookupCacheStore := provideNegativeLookupCache(universalClient)
	sessionSweeper := provideSessionSweeper(cfg, jwtManager, sessionRepository)
	tokenIssuer := provideTokenIssuer(cfg, jwtManager, sessionRepository, refreshTokenRepository, sessionSweeper, negativeLookupCacheStore)
	authGuard := provideAuthGuard(cfg, jwtManager, sessionRepository, userRepository, negativeLookupCacheStore)
	refreshFlow := provideRefreshFlow(cfg, sessionRepository, refreshTokenRepository, userRepository, tokenIssuer)
	core := service.NewCore(tokenIssuer, authGuard, refreshFlow, sessionSweeper, sessionRepository)
	passwordVerifier := providePasswordVerifier()
	identityVerifier := provideIdentityVerifier(cfg)
	authService := service.NewAuthService(core, userRepository, roleRepository, passwordVerifier, identityVerifier)
	authHandler := handler.NewAuthHandler(authService)
	userService := service.NewUserService(userRepository, sessionRepository, passwordVerifier)
	userHandler := handler.NewUserHandler(userService)
	refreshRateLimiterFunc := provideRefreshLimiter(cfg, universalClient)
	probeRunner := provideReadiness(db, universalClient)
	dependencies := provideRouterDependencies(cfg, authHandler, userHandler, core, refreshRateLimiterFunc, probeRunner)
	httpHandler := router.NewRouter(dependencies)
	server := provideHTTPServer(cfg, httpHandler)
	runtime, err := provideObservability(ctx, cfg, lp)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	appApp := provideApp(cfg, server, runtime, sessionSweeper)
	return appApp, func() {
		cleanup2()
		cleanup()
	}, nil
}

func InitializeSessionCore(ctx context.Context, cfg *config.Config) (*service.Core, func(), error) {
	db, cleanup, err := provideDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	universalClient, cleanup2, err := provideRedis(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	jwtManager := provideJWTManager(cfg)
	sessionRepository := repository.NewSessionRepository(db)
	refreshTokenRepository := repository.NewRefreshTokenRepository(db)
	negativeLookupCacheStore := provideNegativeLookupCache(universalClient)
	sessionSweeper := provideSessionSweeper(cfg, jwtManager, sessionRepository)
	tokenIssuer := provideTokenIssuer(cfg, jwtManager, sessionRepository, refreshTokenRepository, sessionSweeper, negativeLookupCacheStore)
	userRepository := repository.NewUserRepository(db)
	authGuard := provideAuthGuard(cfg, jwtManager, sessionRepository, userRepository, negativeLookupCacheStore)
	refreshFlow := provideRefreshFlow(cfg, sessionRepository, refreshTokenRepository, userRepository, tokenIssuer)
	core := service.NewCore(tokenIssuer, authGuard, refreshFlow, sessionSweeper, sessionRepository)
	return core, func() {
		cleanup2()
		cleanup()
	}, nil
}
