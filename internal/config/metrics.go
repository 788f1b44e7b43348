package config

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	stageEnvFile  = "read env file"
	stageParse    = "parse config"
	stageValidate = "validate config"
)

// loadError tags a config failure with the stage that produced it.
type loadError struct {
	stage string
	err   error
}

func (e *loadError) Error() string { return e.stage + ": " + e.err.Error() }

func (e *loadError) Unwrap() error { return e.err }

var (
	configMetricsOnce sync.Once
	configCounter     metric.Int64Counter
)

func recordConfigValidationEvent(ctx context.Context, profile, outcome, errorClass string) {
	configMetricsOnce.Do(func() {
		counter, err := otel.Meter("device-session-guard").Int64Counter("config.validation.events")
		if err == nil {
			configCounter = counter
		}
	})
	if configCounter == nil {
		return
	}
	configCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", normalizeConfigProfile(profile)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", errorClass),
	))
}

func normalizeConfigProfile(profile string) string {
	v := strings.ToLower(strings.TrimSpace(profile))
	if v == "" {
		return "unknown"
	}
	return v
}

func classifyConfigLoadError(err error) string {
	if err == nil {
		return "none"
	}
	var le *loadError
	if !errors.As(err, &le) {
		return "load"
	}
	switch le.stage {
	case stageEnvFile:
		return "env_file"
	case stageParse:
		return "parse"
	case stageValidate:
		return "validation"
	default:
		return "load"
	}
}
