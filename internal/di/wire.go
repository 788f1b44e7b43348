//go:build wireinject

package di

import (
	"context"

	"github.com/google/wire"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/sandeepkv93/device-session-guard/internal/app"
	"github.com/sandeepkv93/device-session-guard/internal/config"
	"github.com/sandeepkv93/device-session-guard/internal/service"
)

func InitializeApp(ctx context.Context, cfg *config.Config, lp *sdklog.LoggerProvider) (*app.App, func(), error) {
	wire.Build(StoreSet, SessionSet, HTTPSet)
	return nil, nil, nil
}

func InitializeSessionCore(ctx context.Context, cfg *config.Config) (*service.Core, func(), error) {
	wire.Build(StoreSet, SessionSet)
	return nil, nil, nil
}
