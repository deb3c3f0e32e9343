// Package processor is the entry point of the billing engine. A Processor
// serializes every service call onto one worker, keeps the service bound
// and runs purchase flows one at a time.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/bivex/iab-client/internal/billing/bundle"
	"github.com/bivex/iab-client/internal/billing/connection"
	"github.com/bivex/iab-client/internal/billing/fetch"
	"github.com/bivex/iab-client/internal/billing/launch"
	"github.com/bivex/iab-client/internal/billing/queue"
	"github.com/bivex/iab-client/internal/billing/responsecode"
	"github.com/bivex/iab-client/internal/billing/security"
	"github.com/bivex/iab-client/internal/domain/entity"
	domainErrors "github.com/bivex/iab-client/internal/domain/errors"
	"github.com/bivex/iab-client/internal/domain/valueobject"
)

// Processor runs billing operations against the service reachable through
// its host.
type Processor struct {
	cfg      Config
	version  valueobject.APIVersion
	conn     *connection.Manager
	queue    *queue.Queue
	fetcher  *fetch.Fetcher
	launcher *launch.Launcher
	logger   *zap.Logger

	releaseOnce sync.Once
}

// New creates a Processor. Nothing is bound until the first operation.
func New(host connection.Host, cfg Config) (*Processor, error) {
	if host == nil {
		return nil, domainErrors.NewValidationError("host", domainErrors.ErrRequiredField)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	version, _ := valueobject.NewAPIVersion(cfg.APIVersion)
	logger := cfg.Logger.With(zap.String("package", cfg.PackageName))

	var opts []security.Option
	if cfg.AllowTestProducts {
		opts = append(opts, security.WithTestProducts())
	}
	decoder := responsecode.NewDecoder(logger.Named("responsecode"))
	verifier := security.NewVerifier(logger.Named("security"), opts...)

	return &Processor{
		cfg:     cfg,
		version: version,
		conn:    connection.NewManager(host, cfg.BindTimeout, logger.Named("connection")),
		queue:   queue.New(logger.Named("queue")),
		fetcher: fetch.New(fetch.Config{
			PackageName:     cfg.PackageName,
			PublicKeyBase64: cfg.PublicKeyBase64,
			APIVersion:      version,
		}, decoder, verifier, logger.Named("fetch")),
		launcher: launch.New(launch.Config{
			PackageName:     cfg.PackageName,
			PublicKeyBase64: cfg.PublicKeyBase64,
			APIVersion:      version,
		}, decoder, verifier, launch.NewLock(), logger.Named("launch")),
		logger: logger,
	}, nil
}

// ConnectionState returns the state of the service binding.
func (p *Processor) ConnectionState() valueobject.ConnectionState {
	return p.conn.State()
}

// IsLaunching reports whether a purchase flow holds the launch lock.
func (p *Processor) IsLaunching() bool {
	return p.launcher.Lock().Locked()
}

// IsBillingSupported fails with BillingUnsupported when the service reports
// kind as unavailable.
func (p *Processor) IsBillingSupported(ctx context.Context, kind valueobject.ProductKind) error {
	if !kind.IsValid() {
		return domainErrors.ArgumentMissing("invalid product kind")
	}
	_, err := run(ctx, p, queue.TypeIsBillingSupported, func(ctx context.Context, svc connection.Service) (struct{}, error) {
		code, err := svc.IsBillingSupported(ctx, p.version.Int(), p.cfg.PackageName, kind)
		if err != nil {
			return struct{}{}, domainErrors.RemoteException(err)
		}
		if code != responsecode.OK {
			return struct{}{}, domainErrors.BillingUnsupported(code)
		}
		return struct{}{}, nil
	})
	return err
}

// FetchProducts returns listings for ids.
func (p *Processor) FetchProducts(ctx context.Context, kind valueobject.ProductKind, ids []string) (*entity.Products, error) {
	if !kind.IsValid() {
		return nil, domainErrors.ArgumentMissing("invalid product kind")
	}
	return run(ctx, p, queue.TypeFetchProducts, func(ctx context.Context, svc connection.Service) (*entity.Products, error) {
		return p.fetcher.Products(ctx, svc, kind, ids)
	})
}

// FetchPurchases returns every verified purchase of kind the user owns.
func (p *Processor) FetchPurchases(ctx context.Context, kind valueobject.ProductKind) (*entity.Purchases, error) {
	if !kind.IsValid() {
		return nil, domainErrors.ArgumentMissing("invalid product kind")
	}
	return run(ctx, p, queue.TypeFetchPurchases, func(ctx context.Context, svc connection.Service) (*entity.Purchases, error) {
		return p.fetcher.Purchases(ctx, svc, kind)
	})
}

// Consume uses up a one-time purchase so it can be bought again.
func (p *Processor) Consume(ctx context.Context, purchaseToken string) error {
	if purchaseToken == "" {
		return domainErrors.ArgumentMissing("purchase token is required")
	}
	_, err := run(ctx, p, queue.TypeConsume, func(ctx context.Context, svc connection.Service) (struct{}, error) {
		code, err := svc.ConsumePurchase(ctx, p.version.Int(), p.cfg.PackageName, purchaseToken)
		if err != nil {
			return struct{}{}, domainErrors.RemoteException(err)
		}
		if code != responsecode.OK {
			return struct{}{}, domainErrors.ConsumeFailed(code)
		}
		return struct{}{}, nil
	})
	return err
}

// Acknowledge confirms a purchase through the configured Acknowledger.
func (p *Processor) Acknowledge(ctx context.Context, kind valueobject.ProductKind, sku, purchaseToken, developerPayload string) error {
	if p.cfg.Acknowledger == nil {
		return domainErrors.ArgumentMissing("acknowledger not configured")
	}
	if sku == "" || purchaseToken == "" {
		return domainErrors.ArgumentMissing("product id and purchase token are required")
	}
	if !kind.IsValid() {
		return domainErrors.ArgumentMissing("invalid product kind")
	}
	_, err := submit(ctx, p, queue.TypeAcknowledge, func(ctx context.Context) (struct{}, error) {
		if err := p.cfg.Acknowledger.Acknowledge(ctx, kind, sku, purchaseToken, developerPayload); err != nil {
			return struct{}{}, domainErrors.RemoteException(err)
		}
		return struct{}{}, nil
	})
	return err
}

// Launch starts a purchase flow and returns once the confirmation screen
// has been handed to ui. The result arrives through HandleResult; wait for
// it with Flow.Wait. A flow already in progress makes Launch fail at once
// with AlreadyLaunching.
//
// Once queued, the launch command alone resolves a failed flow. If ctx ends
// first Launch returns ctx.Err() but the lock stays held until the command
// has finished; a screen it managed to show still reports through
// HandleResult.
func (p *Processor) Launch(ctx context.Context, ui launch.UIHost, req launch.Request) (*launch.Flow, error) {
	flow, err := p.launcher.Begin(req)
	if err != nil {
		p.report(err, queue.TypeLaunch)
		return nil, err
	}

	started := make(chan error, 1)
	err = p.queue.Submit(queue.TypeLaunch, func() {
		started <- p.startFlow(ctx, flow, ui)
	})
	if err != nil {
		p.launcher.Abort(flow, err)
		p.report(err, queue.TypeLaunch)
		return nil, err
	}

	select {
	case err := <-started:
		if err != nil {
			p.report(err, queue.TypeLaunch)
			return nil, err
		}
		return flow, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// startFlow runs on the worker. Every failure path resolves the flow.
func (p *Processor) startFlow(ctx context.Context, flow *launch.Flow, ui launch.UIHost) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command %s panicked: %v", queue.TypeLaunch, r)
			p.launcher.Abort(flow, err)
		}
	}()

	if err := ctx.Err(); err != nil {
		p.launcher.Abort(flow, err)
		return err
	}
	svc, err := p.conn.EnsureBound(ctx)
	if err != nil {
		p.launcher.Abort(flow, err)
		return err
	}
	return p.launcher.Start(ctx, svc, flow, ui)
}

// Purchase launches a flow and waits for its result.
func (p *Processor) Purchase(ctx context.Context, ui launch.UIHost, req launch.Request) (*entity.Purchase, error) {
	flow, err := p.Launch(ctx, ui, req)
	if err != nil {
		return nil, err
	}
	purchase, err := flow.Wait(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		p.report(err, queue.TypeLaunch)
	}
	return purchase, err
}

// HandleResult delivers a UI result. It reports false when requestCode does
// not belong to a flow of this processor.
func (p *Processor) HandleResult(requestCode, resultCode int, data bundle.Bundle) bool {
	return p.launcher.HandleResult(requestCode, resultCode, data)
}

// DiscardFlow fails the flow waiting for a UI result and frees the launch
// lock. Hosts call it when the confirmation screen is torn down without a
// result.
func (p *Processor) DiscardFlow() bool {
	return p.launcher.Discard()
}

// Release shuts the processor down. New operations fail with
// AlreadyReleased, as does any flow waiting for a result and any queued
// launch. Operations queued before Release still run; Release returns after
// they have, then unbinds. It must not be called from a UIHost callback.
// Safe to call more than once.
func (p *Processor) Release() {
	p.releaseOnce.Do(func() {
		p.queue.Close()
		p.launcher.Release()
		<-p.queue.Done()
		p.conn.Release()
		p.logger.Info("Billing processor released")
	})
}

// run executes fn on the worker once the service is bound.
func run[T any](ctx context.Context, p *Processor, name string, fn func(ctx context.Context, svc connection.Service) (T, error)) (T, error) {
	return submit(ctx, p, name, func(ctx context.Context) (T, error) {
		svc, err := p.conn.EnsureBound(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		return fn(ctx, svc)
	})
}

func submit[T any](ctx context.Context, p *Processor, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := queue.Do(ctx, p.queue, name, fn)
	if err != nil {
		p.report(err, name)
	}
	return v, err
}

// report forwards unexpected failures to the Reporter. Outcomes the caller
// caused or asked for are not reported.
func (p *Processor) report(err error, command string) {
	if p.cfg.Reporter == nil {
		return
	}
	kind := domainErrors.KindOf(err)
	switch kind {
	case domainErrors.KindUserCanceled,
		domainErrors.KindAlreadyLaunching,
		domainErrors.KindAlreadyReleased,
		domainErrors.KindArgumentMissing:
		return
	case domainErrors.KindUnknown:
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
	}
	p.cfg.Reporter.Report(err, map[string]string{
		"command": command,
		"kind":    kind.String(),
		"package": p.cfg.PackageName,
	})
}
