package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/bivex/iab-client/internal/billing/processor"
	"github.com/bivex/iab-client/internal/infrastructure/config"
	"github.com/bivex/iab-client/internal/infrastructure/external/playservice"
	"github.com/bivex/iab-client/internal/infrastructure/external/publisher"
	"github.com/bivex/iab-client/internal/infrastructure/logging"
	"github.com/bivex/iab-client/internal/infrastructure/monitoring"
)

// app holds everything a subcommand needs
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	reporter  *monitoring.SentryReporter
	client    *playservice.Client
	host      *playservice.Host
	processor *processor.Processor

	closeOnce sync.Once
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if err := logging.Init(&cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := logging.Logger

	reporter, err := monitoring.NewSentryReporter(cfg.Sentry, logger)
	if err != nil {
		return nil, err
	}

	// the interface stays nil without credentials
	var acknowledger processor.Acknowledger
	if cfg.Publisher.CredentialsFile != "" {
		credentials, err := os.ReadFile(cfg.Publisher.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read publisher credentials: %w", err)
		}
		var opts []option.ClientOption
		if cfg.Publisher.Endpoint != "" {
			opts = append(opts, option.WithEndpoint(cfg.Publisher.Endpoint))
		}
		ack, err := publisher.NewAcknowledger(ctx, cfg.Billing.PackageName, credentials, logger, opts...)
		if err != nil {
			return nil, err
		}
		acknowledger = ack
	}

	client := playservice.NewClient(cfg.Service, logger)
	host := playservice.NewHost(client, cfg.Billing.PackageName, logger)

	proc, err := processor.New(host, processor.Config{
		PackageName:     cfg.Billing.PackageName,
		PublicKeyBase64: cfg.Billing.PublicKey,
		APIVersion:      cfg.Billing.APIVersion,
		BindTimeout:     cfg.Billing.BindTimeout,
		Logger:          logger,
		Reporter:        reporter,
		Acknowledger:    acknowledger,
	})
	if err != nil {
		host.Close()
		return nil, err
	}

	logger.Debug("Billing client ready",
		zap.String("package", cfg.Billing.PackageName),
		zap.String("service_url", cfg.Service.URL),
		zap.Int("api_version", cfg.Billing.APIVersion),
	)

	return &app{
		cfg:       cfg,
		logger:    logger,
		reporter:  reporter,
		client:    client,
		host:      host,
		processor: proc,
	}, nil
}

func (a *app) close() {
	a.closeOnce.Do(func() {
		a.processor.Release()
		a.host.Close()
		a.reporter.Flush()
		logging.Sync()
	})
}
