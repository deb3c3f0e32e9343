// Package monitoring forwards billing failures to Sentry.
package monitoring

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	domainErrors "github.com/bivex/iab-client/internal/domain/errors"
	"github.com/bivex/iab-client/internal/infrastructure/config"
)

const flushTimeout = 2 * time.Second

// SentryReporter reports errors through a dedicated Sentry hub.
type SentryReporter struct {
	hub    *sentry.Hub
	logger *zap.Logger
}

// NewSentryReporter creates a reporter. An empty DSN yields a reporter that
// still runs the client pipeline but sends nothing.
func NewSentryReporter(cfg config.SentryConfig, logger *zap.Logger, opts ...func(*sentry.ClientOptions)) (*SentryReporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	options := sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
	}
	for _, opt := range opts {
		opt(&options)
	}

	client, err := sentry.NewClient(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry client: %w", err)
	}
	if cfg.DSN != "" {
		logger.Info("Sentry reporting enabled", zap.String("environment", cfg.Environment))
	}
	return &SentryReporter{
		hub:    sentry.NewHub(client, sentry.NewScope()),
		logger: logger,
	}, nil
}

// Report captures err with tags. Billing errors also carry their code.
func (r *SentryReporter) Report(err error, tags map[string]string) {
	if err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		if code, ok := domainErrors.CodeOf(err); ok {
			scope.SetTag("billing_code", fmt.Sprint(code))
		}
		r.hub.CaptureException(err)
	})
	r.logger.Debug("Failure reported", zap.Error(err))
}

// Flush waits for queued events to be sent
func (r *SentryReporter) Flush() bool {
	return r.hub.Flush(flushTimeout)
}
