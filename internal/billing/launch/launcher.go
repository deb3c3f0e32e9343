// Package launch drives the purchase confirmation protocol: it requests a
// launch token, hands it to the host's UI and correlates the result the UI
// reports later.
package launch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bivex/iab-client/internal/billing/bundle"
	"github.com/bivex/iab-client/internal/billing/connection"
	"github.com/bivex/iab-client/internal/billing/responsecode"
	"github.com/bivex/iab-client/internal/billing/security"
	"github.com/bivex/iab-client/internal/domain/entity"
	domainErrors "github.com/bivex/iab-client/internal/domain/errors"
	"github.com/bivex/iab-client/internal/domain/valueobject"
)

// Outer completion codes reported by the UI host.
const (
	ResultOK       = -1
	ResultCanceled = 0
)

// ErrNoUIContext is returned by a UIHost that has nothing to show the
// confirmation screen on.
var ErrNoUIContext = errors.New("no active ui context")

// UIHost displays the purchase confirmation screen. The host later reports
// the outcome through Launcher.HandleResult with the same request code.
type UIHost interface {
	StartConfirmationFlow(launchToken any, requestCode int) error
}

// Config holds the launcher's service parameters.
type Config struct {
	PackageName     string
	PublicKeyBase64 string
	APIVersion      valueobject.APIVersion
}

// Launcher runs purchase flows, at most one at a time.
type Launcher struct {
	cfg      Config
	decoder  *responsecode.Decoder
	verifier *security.Verifier
	lock     *Lock
	pending  *pendingTable
	released atomic.Bool
	logger   *zap.Logger
}

// New creates a Launcher guarded by lock.
func New(cfg Config, decoder *responsecode.Decoder, verifier *security.Verifier, lock *Lock, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lock == nil {
		lock = NewLock()
	}
	return &Launcher{
		cfg:      cfg,
		decoder:  decoder,
		verifier: verifier,
		lock:     lock,
		pending:  newPendingTable(),
		logger:   logger,
	}
}

// Lock returns the guard shared by this launcher's flows.
func (l *Launcher) Lock() *Lock {
	return l.lock
}

// Begin acquires the lock for a new flow. It fails at once with
// AlreadyLaunching when another flow holds the lock.
func (l *Launcher) Begin(req Request) (*Flow, error) {
	if l.released.Load() {
		return nil, domainErrors.AlreadyReleased()
	}
	if req.Sku == "" {
		return nil, domainErrors.ArgumentMissing("product id is required")
	}
	if !req.Kind.IsValid() {
		return nil, domainErrors.ArgumentMissing(fmt.Sprintf("invalid product kind %q", req.Kind))
	}
	if req.DeveloperPayload == "" {
		req.DeveloperPayload = uuid.NewString()
	}

	owner := &Owner{FlowID: uuid.NewString(), RequestCode: req.Kind.RequestCode()}
	if !l.lock.TryAcquire(owner) {
		l.logger.Warn("Purchase flow rejected, another flow is in progress",
			zap.String("sku", req.Sku),
		)
		return nil, domainErrors.AlreadyLaunching()
	}

	f := newFlow(req, owner)
	l.logger.Info("Purchase flow started",
		zap.String("flow_id", f.ID()),
		zap.String("sku", req.Sku),
		zap.String("kind", req.Kind.String()),
		zap.Int("request_code", f.RequestCode()),
	)
	return f, nil
}

// Start requests the launch token and hands it to ui. Any failure resolves
// the flow and releases the lock before it is returned.
func (l *Launcher) Start(ctx context.Context, svc connection.Service, f *Flow, ui UIHost) error {
	if err := l.start(ctx, svc, f, ui); err != nil {
		l.Abort(f, err)
		return err
	}
	return nil
}

func (l *Launcher) start(ctx context.Context, svc connection.Service, f *Flow, ui UIHost) error {
	if l.released.Load() {
		return domainErrors.AlreadyReleased()
	}
	if f.Resolved() {
		return f.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.setState(StateRequestingToken)

	req := f.req
	var (
		resp bundle.Bundle
		err  error
	)
	if req.IsReplacement() {
		resp, err = svc.GetBuyIntentToReplaceSkus(ctx, valueobject.ReplaceProductsAPIVersion.Int(), l.cfg.PackageName, req.PreviousSkus, req.Sku, req.Kind, req.DeveloperPayload)
	} else {
		resp, err = svc.GetBuyIntent(ctx, l.cfg.APIVersion.Int(), l.cfg.PackageName, req.Sku, req.Kind, req.DeveloperPayload)
	}
	if err != nil {
		return domainErrors.RemoteException(err)
	}

	code, err := l.decoder.FromResponse(resp)
	if err != nil {
		return err
	}
	if code != responsecode.OK {
		return domainErrors.UnableToPurchase(code)
	}

	token := resp.Get(bundle.KeyBuyIntent)
	if token == nil {
		return domainErrors.PendingIntentMissing()
	}
	if ui == nil {
		return domainErrors.LostContext(domainErrors.MsgLostContext)
	}

	// the caller may have given up while the token was requested
	if err := ctx.Err(); err != nil {
		return err
	}
	if !l.pending.put(f) {
		return f.err
	}
	f.setState(StateAwaitingUIResult)
	if l.released.Load() {
		return domainErrors.AlreadyReleased()
	}
	if f.Resolved() {
		return f.err
	}
	if err := ui.StartConfirmationFlow(token, f.RequestCode()); err != nil {
		if errors.Is(err, ErrNoUIContext) {
			return domainErrors.LostContext(domainErrors.MsgLostContext)
		}
		return domainErrors.SendIntentFailed(err)
	}

	l.logger.Info("Purchase flow handed to ui",
		zap.String("flow_id", f.ID()),
		zap.Int("request_code", f.RequestCode()),
	)
	return nil
}

// Abort resolves f with err and releases its lock.
func (l *Launcher) Abort(f *Flow, err error) {
	l.finish(f, nil, err)
}

// HandleResult resolves the flow waiting on requestCode. A result carrying
// another request code fails the waiting flow with BadResponse. It returns
// false only when no flow is waiting at all.
func (l *Launcher) HandleResult(requestCode, resultCode int, data bundle.Bundle) bool {
	f := l.pending.take(requestCode)
	if f == nil {
		stray := l.pending.takeAll()
		if len(stray) == 0 {
			l.logger.Debug("Ignoring result with no pending purchase flow",
				zap.Int("request_code", requestCode),
				zap.Int("result_code", resultCode),
			)
			return false
		}
		for _, f := range stray {
			l.logger.Warn("Result request code does not match the pending purchase flow",
				zap.String("flow_id", f.ID()),
				zap.Int("expected", f.RequestCode()),
				zap.Int("request_code", requestCode),
			)
			l.finish(f, nil, domainErrors.BadResponse(domainErrors.MsgRequestCodeInvalid))
		}
		return true
	}

	purchase, err := l.processResult(f, resultCode, data)
	l.finish(f, purchase, err)
	return true
}

func (l *Launcher) processResult(f *Flow, resultCode int, data bundle.Bundle) (purchase *entity.Purchase, err error) {
	defer func() {
		if r := recover(); r != nil {
			purchase = nil
			err = domainErrors.Wrap(domainErrors.KindBadResponse, domainErrors.CodeBadResponse, domainErrors.MsgBadResponse, fmt.Errorf("panic: %v", r))
		}
	}()

	if data == nil {
		return nil, domainErrors.BadResponse(domainErrors.MsgNullResult)
	}

	inner, err := l.decoder.FromResult(data)
	if err != nil {
		return nil, err
	}

	switch {
	case resultCode == ResultOK && inner == responsecode.OK:
		f.setState(StateVerifying)
		payload, _ := data.String(bundle.KeyPurchaseData)
		signature, _ := data.String(bundle.KeyPurchaseSignature)
		if payload == "" || signature == "" {
			return nil, domainErrors.NullPurchaseData()
		}
		if !l.verifier.Verify(l.cfg.PublicKeyBase64, payload, signature) {
			return nil, domainErrors.VerificationFailed()
		}
		purchase, err := entity.ParsePurchase(payload, signature)
		if err != nil {
			return nil, domainErrors.Wrap(domainErrors.KindBadResponse, domainErrors.CodeBadResponse, domainErrors.MsgBadResponse, err)
		}
		return purchase, nil
	case resultCode == ResultCanceled:
		return nil, domainErrors.UserCanceled(ResultCanceled)
	default:
		l.logger.Warn("Unknown purchase flow result",
			zap.String("flow_id", f.ID()),
			zap.Int("result_code", resultCode),
			zap.Int("response_code", inner),
		)
		return nil, domainErrors.UnknownResult(resultCode, domainErrors.MsgUnknownResult)
	}
}

// Discard resolves every flow still waiting for a UI result with
// LostContext. Hosts call it when the confirmation screen goes away without
// reporting a result.
func (l *Launcher) Discard() bool {
	flows := l.pending.takeAll()
	for _, f := range flows {
		l.finish(f, nil, domainErrors.LostContext(domainErrors.MsgFlowDiscarded))
	}
	return len(flows) > 0
}

// Release fails waiting flows with AlreadyReleased, resets the lock and
// rejects further flows.
func (l *Launcher) Release() {
	if !l.released.CompareAndSwap(false, true) {
		return
	}
	for _, f := range l.pending.takeAll() {
		l.finish(f, nil, domainErrors.AlreadyReleased())
	}
	l.lock.Reset()
}

// Pending returns the number of flows waiting for a UI result.
func (l *Launcher) Pending() int {
	return l.pending.len()
}

func (l *Launcher) finish(f *Flow, purchase *entity.Purchase, err error) {
	first := f.resolve(purchase, err)
	l.pending.remove(f)
	if !first {
		return
	}
	l.lock.Release(f.owner)

	if err != nil {
		l.logger.Warn("Purchase flow failed",
			zap.String("flow_id", f.ID()),
			zap.String("sku", f.req.Sku),
			zap.Error(err),
		)
		return
	}
	l.logger.Info("Purchase flow completed",
		zap.String("flow_id", f.ID()),
		zap.String("sku", purchase.Sku),
		zap.String("order_id", purchase.OrderID),
	)
}
