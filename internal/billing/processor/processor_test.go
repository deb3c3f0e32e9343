package processor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bivex/iab-client/internal/billing/bundle"
	"github.com/bivex/iab-client/internal/billing/launch"
	"github.com/bivex/iab-client/internal/billing/processor"
	"github.com/bivex/iab-client/internal/billing/responsecode"
	domainErrors "github.com/bivex/iab-client/internal/domain/errors"
	"github.com/bivex/iab-client/internal/domain/valueobject"
	"github.com/bivex/iab-client/tests/mocks"
	"github.com/bivex/iab-client/tests/testutil"
)

const packageName = "com.example.app"

type recordingReporter struct {
	mu      sync.Mutex
	reports []map[string]string
}

func (r *recordingReporter) Report(err error, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, tags)
}

func (r *recordingReporter) all() []map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]string{}, r.reports...)
}

type fixture struct {
	receipts *testutil.ReceiptFactory
	svc      *mocks.MockBillingService
	host     *testutil.FakeHost
	ui       *mocks.MockUIHost
	ack      *mocks.MockAcknowledger
	reporter *recordingReporter
	proc     *processor.Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		receipts: testutil.NewReceiptFactory(t),
		svc:      mocks.NewMockBillingService(),
		ui:       mocks.NewMockUIHost(),
		ack:      mocks.NewMockAcknowledger(),
		reporter: &recordingReporter{},
	}
	fx.host = testutil.NewFakeHost(fx.svc, testutil.HostConnectSync)

	proc, err := processor.New(fx.host, processor.Config{
		PackageName:     packageName,
		PublicKeyBase64: fx.receipts.PublicKey(),
		APIVersion:      3,
		BindTimeout:     time.Second,
		Reporter:        fx.reporter,
		Acknowledger:    fx.ack,
	})
	require.NoError(t, err)
	fx.proc = proc
	t.Cleanup(proc.Release)
	return fx
}

func (fx *fixture) expectBuyIntent(kind valueobject.ProductKind, sku string) {
	fx.svc.On("GetBuyIntent", mock.Anything, 3, packageName, sku, kind, mock.Anything).
		Return(bundle.New().PutInt(bundle.KeyResponseCode, 0).Put(bundle.KeyBuyIntent, "intent-"+sku), nil).Once()
	fx.ui.On("StartConfirmationFlow", "intent-"+sku, kind.RequestCode()).Return(nil).Once()
}

func (fx *fixture) launch(t *testing.T, kind valueobject.ProductKind, sku string) *launch.Flow {
	t.Helper()
	fx.expectBuyIntent(kind, sku)
	flow, err := fx.proc.Launch(context.Background(), fx.ui, launch.Request{Kind: kind, Sku: sku})
	require.NoError(t, err)
	return flow
}

func wait(t *testing.T, flow *launch.Flow) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := flow.Wait(ctx)
	return err
}

func TestNew(t *testing.T) {
	svc := mocks.NewMockBillingService()
	host := testutil.NewFakeHost(svc, testutil.HostConnectSync)

	tests := []struct {
		name  string
		host  *testutil.FakeHost
		cfg   processor.Config
		field string
	}{
		{name: "missing package", host: host, cfg: processor.Config{PublicKeyBase64: "k"}, field: "package_name"},
		{name: "missing key", host: host, cfg: processor.Config{PackageName: packageName}, field: "public_key"},
		{name: "unsupported version", host: host, cfg: processor.Config{PackageName: packageName, PublicKeyBase64: "k", APIVersion: 4}, field: "api_version"},
		{name: "negative timeout", host: host, cfg: processor.Config{PackageName: packageName, PublicKeyBase64: "k", BindTimeout: -time.Second}, field: "bind_timeout"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			proc, err := processor.New(tc.host, tc.cfg)
			assert.Nil(t, proc)
			var verr *domainErrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	t.Run("nil host", func(t *testing.T) {
		_, err := processor.New(nil, processor.Config{PackageName: packageName, PublicKeyBase64: "k"})
		assert.ErrorIs(t, err, domainErrors.ErrRequiredField)
	})

	t.Run("defaults", func(t *testing.T) {
		cfg := processor.Config{PackageName: packageName, PublicKeyBase64: "k"}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, 3, cfg.APIVersion)
		assert.Equal(t, 10*time.Second, cfg.BindTimeout)
		assert.NotNil(t, cfg.Logger)
	})
}

func TestProcessorQueries(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches ten purchases", func(t *testing.T) {
		fx := newFixture(t)
		skus := testutil.SKUs("coins", 10)
		fx.svc.On("GetPurchases", mock.Anything, 3, packageName, valueobject.KindInApp, "").
			Return(fx.receipts.PurchasesPage(skus, ""), nil).Once()

		purchases, err := fx.proc.FetchPurchases(ctx, valueobject.KindInApp)

		require.NoError(t, err)
		assert.Equal(t, 10, purchases.Size())
		for _, sku := range skus {
			assert.True(t, purchases.HasItemID(sku))
		}
		assert.Equal(t, valueobject.StateBound, fx.proc.ConnectionState())
	})

	t.Run("empty page fails and is reported", func(t *testing.T) {
		fx := newFixture(t)
		fx.svc.On("GetPurchases", mock.Anything, 3, packageName, valueobject.KindInApp, "").
			Return(bundle.New(), nil).Once()

		_, err := fx.proc.FetchPurchases(ctx, valueobject.KindInApp)

		assert.ErrorIs(t, err, domainErrors.ErrUnexpectedType)
		reports := fx.reporter.all()
		require.Len(t, reports, 1)
		assert.Equal(t, "unexpected_type", reports[0]["kind"])
		assert.Equal(t, "fetch:purchases", reports[0]["command"])
	})

	t.Run("fetches products", func(t *testing.T) {
		fx := newFixture(t)
		skus := testutil.SKUs("gem", 3)
		fx.svc.On("GetSkuDetails", mock.Anything, 3, packageName, valueobject.KindInApp, mock.Anything).
			Return(fx.receipts.ProductsPage(skus, "inapp", ""), nil).Once()

		products, err := fx.proc.FetchProducts(ctx, valueobject.KindInApp, skus)

		require.NoError(t, err)
		assert.Equal(t, 3, products.Size())
	})

	t.Run("billing supported", func(t *testing.T) {
		fx := newFixture(t)
		fx.svc.On("IsBillingSupported", mock.Anything, 3, packageName, valueobject.KindInApp).Return(0, nil).Once()
		fx.svc.On("IsBillingSupported", mock.Anything, 3, packageName, valueobject.KindSubscription).
			Return(responsecode.BillingUnavailable, nil).Once()

		assert.NoError(t, fx.proc.IsBillingSupported(ctx, valueobject.KindInApp))
		err := fx.proc.IsBillingSupported(ctx, valueobject.KindSubscription)
		require.ErrorIs(t, err, domainErrors.ErrBillingUnsupported)
		code, _ := domainErrors.CodeOf(err)
		assert.Equal(t, responsecode.BillingUnavailable, code)
	})

	t.Run("consume", func(t *testing.T) {
		fx := newFixture(t)
		fx.svc.On("ConsumePurchase", mock.Anything, 3, packageName, "token-1").Return(0, nil).Once()
		fx.svc.On("ConsumePurchase", mock.Anything, 3, packageName, "token-2").Return(responsecode.ItemNotOwned, nil).Once()

		assert.NoError(t, fx.proc.Consume(ctx, "token-1"))
		err := fx.proc.Consume(ctx, "token-2")
		require.ErrorIs(t, err, domainErrors.ErrConsumeFailed)
		code, _ := domainErrors.CodeOf(err)
		assert.Equal(t, responsecode.ItemNotOwned, code)
		assert.ErrorIs(t, fx.proc.Consume(ctx, ""), domainErrors.ErrArgumentMissing)
	})

	t.Run("acknowledge", func(t *testing.T) {
		fx := newFixture(t)
		fx.ack.On("Acknowledge", mock.Anything, valueobject.KindSubscription, "monthly", "token-1", "p").Return(nil).Once()
		fx.ack.On("Acknowledge", mock.Anything, valueobject.KindSubscription, "monthly", "token-2", "").Return(errors.New("403")).Once()

		assert.NoError(t, fx.proc.Acknowledge(ctx, valueobject.KindSubscription, "monthly", "token-1", "p"))
		assert.ErrorIs(t, fx.proc.Acknowledge(ctx, valueobject.KindSubscription, "monthly", "token-2", ""), domainErrors.ErrRemoteException)
		assert.ErrorIs(t, fx.proc.Acknowledge(ctx, valueobject.KindSubscription, "", "token", ""), domainErrors.ErrArgumentMissing)
		fx.ack.AssertExpectations(t)
		assert.Zero(t, fx.host.Binds())
	})

	t.Run("acknowledge without an acknowledger", func(t *testing.T) {
		receipts := testutil.NewReceiptFactory(t)
		proc, err := processor.New(testutil.NewFakeHost(mocks.NewMockBillingService(), testutil.HostConnectSync), processor.Config{
			PackageName:     packageName,
			PublicKeyBase64: receipts.PublicKey(),
		})
		require.NoError(t, err)
		defer proc.Release()

		err = proc.Acknowledge(ctx, valueobject.KindInApp, "coins", "token", "")
		require.ErrorIs(t, err, domainErrors.ErrArgumentMissing)
		assert.Contains(t, err.Error(), "acknowledger not configured")
	})

	t.Run("invalid kind", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.proc.FetchPurchases(ctx, "bogus")
		assert.ErrorIs(t, err, domainErrors.ErrArgumentMissing)
		assert.Empty(t, fx.reporter.all())
	})

	t.Run("rebinds after the service disconnects", func(t *testing.T) {
		fx := newFixture(t)
		fx.svc.On("GetPurchases", mock.Anything, 3, packageName, valueobject.KindInApp, "").
			Return(fx.receipts.PurchasesPage(nil, ""), nil).Twice()

		_, err := fx.proc.FetchPurchases(ctx, valueobject.KindInApp)
		require.NoError(t, err)
		fx.host.Disconnect()
		assert.Equal(t, valueobject.StateDisconnected, fx.proc.ConnectionState())

		_, err = fx.proc.FetchPurchases(ctx, valueobject.KindInApp)
		require.NoError(t, err)
		assert.Equal(t, 2, fx.host.Binds())
	})

	t.Run("refused bind", func(t *testing.T) {
		fx := newFixture(t)
		fx.host.SetMode(testutil.HostRefuse)

		_, err := fx.proc.FetchPurchases(ctx, valueobject.KindInApp)
		assert.ErrorIs(t, err, domainErrors.ErrBindServiceFailed)
	})
}

func TestProcessorPurchaseFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("launch then result", func(t *testing.T) {
		fx := newFixture(t)
		flow := fx.launch(t, valueobject.KindInApp, "coins")
		assert.True(t, fx.proc.IsLaunching())

		require.True(t, fx.proc.HandleResult(valueobject.RequestCodeOneTime, launch.ResultOK, fx.receipts.SuccessResult("coins")))

		purchase, err := flow.Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, "coins", purchase.Sku)
		assert.False(t, fx.proc.IsLaunching())
		fx.ui.AssertExpectations(t)
	})

	t.Run("purchase waits for a result delivered by the ui", func(t *testing.T) {
		fx := newFixture(t)
		fx.svc.On("GetBuyIntent", mock.Anything, 3, packageName, "monthly", valueobject.KindSubscription, "payload").
			Return(bundle.New().PutLong(bundle.KeyResponseCode, 0).Put(bundle.KeyBuyIntent, "intent"), nil).Once()
		result := fx.receipts.SuccessResult("monthly")
		fx.ui.On("StartConfirmationFlow", "intent", valueobject.RequestCodeRecurring).
			Run(func(args mock.Arguments) {
				go fx.proc.HandleResult(args.Int(1), launch.ResultOK, result)
			}).
			Return(nil).Once()

		purchase, err := fx.proc.Purchase(ctx, fx.ui, launch.Request{
			Kind:             valueobject.KindSubscription,
			Sku:              "monthly",
			DeveloperPayload: "payload",
		})

		require.NoError(t, err)
		assert.Equal(t, "monthly", purchase.Sku)
	})

	t.Run("second launch fails immediately", func(t *testing.T) {
		fx := newFixture(t)
		fx.launch(t, valueobject.KindInApp, "coins")

		_, err := fx.proc.Launch(ctx, fx.ui, launch.Request{Kind: valueobject.KindSubscription, Sku: "monthly"})

		assert.ErrorIs(t, err, domainErrors.ErrAlreadyLaunching)
		assert.Empty(t, fx.reporter.all())
	})

	t.Run("cancel releases the lock and a new launch succeeds", func(t *testing.T) {
		fx := newFixture(t)
		flow := fx.launch(t, valueobject.KindInApp, "coins")

		fx.proc.HandleResult(valueobject.RequestCodeOneTime, launch.ResultCanceled, bundle.New().PutInt(bundle.KeyResponseCode, responsecode.UserCanceled))

		assert.ErrorIs(t, wait(t, flow), domainErrors.ErrUserCanceled)
		assert.False(t, fx.proc.IsLaunching())
		next := fx.launch(t, valueobject.KindInApp, "gems")
		assert.False(t, next.Resolved())
	})

	t.Run("empty receipt payload", func(t *testing.T) {
		fx := newFixture(t)
		flow := fx.launch(t, valueobject.KindInApp, "coins")

		fx.proc.HandleResult(valueobject.RequestCodeOneTime, launch.ResultOK, bundle.New().
			PutString(bundle.KeyPurchaseData, "").
			PutString(bundle.KeyPurchaseSignature, "c2ln"))

		assert.ErrorIs(t, wait(t, flow), domainErrors.ErrNullPurchaseData)
		assert.False(t, fx.proc.IsLaunching())
	})

	t.Run("bind failure releases the lock", func(t *testing.T) {
		fx := newFixture(t)
		fx.host.SetMode(testutil.HostRefuse)

		_, err := fx.proc.Launch(ctx, fx.ui, launch.Request{Kind: valueobject.KindInApp, Sku: "coins"})

		assert.ErrorIs(t, err, domainErrors.ErrBindServiceFailed)
		assert.False(t, fx.proc.IsLaunching())
	})

	t.Run("unable to purchase", func(t *testing.T) {
		fx := newFixture(t)
		fx.svc.On("GetBuyIntent", mock.Anything, 3, packageName, "coins", valueobject.KindInApp, mock.Anything).
			Return(bundle.New().PutInt(bundle.KeyResponseCode, responsecode.ItemAlreadyOwned), nil).Once()

		_, err := fx.proc.Launch(ctx, fx.ui, launch.Request{Kind: valueobject.KindInApp, Sku: "coins"})

		require.ErrorIs(t, err, domainErrors.ErrUnableToPurchase)
		code, _ := domainErrors.CodeOf(err)
		assert.Equal(t, responsecode.ItemAlreadyOwned, code)
		assert.False(t, fx.proc.IsLaunching())
	})

	t.Run("discarded flow", func(t *testing.T) {
		fx := newFixture(t)
		flow := fx.launch(t, valueobject.KindInApp, "coins")

		assert.True(t, fx.proc.DiscardFlow())
		assert.ErrorIs(t, wait(t, flow), domainErrors.ErrLostContext)
		assert.False(t, fx.proc.IsLaunching())
	})

	t.Run("result for another request code fails the waiting flow", func(t *testing.T) {
		fx := newFixture(t)
		flow := fx.launch(t, valueobject.KindInApp, "coins")

		assert.True(t, fx.proc.HandleResult(9999, launch.ResultOK, fx.receipts.SuccessResult("coins")))

		err := wait(t, flow)
		require.ErrorIs(t, err, domainErrors.ErrBadResponse)
		assert.Contains(t, err.Error(), domainErrors.MsgRequestCodeInvalid)
		assert.False(t, fx.proc.IsLaunching())
		assert.False(t, fx.proc.HandleResult(valueobject.RequestCodeOneTime, launch.ResultOK, fx.receipts.SuccessResult("coins")))
	})

	t.Run("launch canceled while the token is requested never shows the screen", func(t *testing.T) {
		fx := newFixture(t)
		gate := make(chan struct{})
		requested := make(chan struct{})
		fx.svc.On("GetBuyIntent", mock.Anything, 3, packageName, "coins", valueobject.KindInApp, mock.Anything).
			Run(func(mock.Arguments) {
				close(requested)
				<-gate
			}).
			Return(bundle.New().PutInt(bundle.KeyResponseCode, 0).Put(bundle.KeyBuyIntent, "intent-coins"), nil).Once()

		launchCtx, cancel := context.WithCancel(ctx)
		errs := make(chan error, 1)
		go func() {
			_, err := fx.proc.Launch(launchCtx, fx.ui, launch.Request{Kind: valueobject.KindInApp, Sku: "coins"})
			errs <- err
		}()
		<-requested
		cancel()

		assert.ErrorIs(t, <-errs, context.Canceled)
		assert.True(t, fx.proc.IsLaunching(), "lock must stay held while the command runs")
		_, err := fx.proc.Launch(ctx, fx.ui, launch.Request{Kind: valueobject.KindInApp, Sku: "gems"})
		assert.ErrorIs(t, err, domainErrors.ErrAlreadyLaunching)

		close(gate)
		assert.Eventually(t, func() bool { return !fx.proc.IsLaunching() }, time.Second, 5*time.Millisecond)
		fx.ui.AssertNotCalled(t, "StartConfirmationFlow", mock.Anything, mock.Anything)
		assert.False(t, fx.proc.HandleResult(valueobject.RequestCodeOneTime, launch.ResultOK, fx.receipts.SuccessResult("coins")))

		next := fx.launch(t, valueobject.KindInApp, "gems")
		assert.Equal(t, launch.StateAwaitingUIResult, next.State())
	})
}

func TestProcessorRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects operations after release", func(t *testing.T) {
		fx := newFixture(t)
		fx.proc.Release()
		fx.proc.Release()

		_, err := fx.proc.FetchPurchases(ctx, valueobject.KindInApp)
		assert.ErrorIs(t, err, domainErrors.ErrAlreadyReleased)
		assert.ErrorIs(t, fx.proc.Consume(ctx, "token"), domainErrors.ErrAlreadyReleased)
		_, err = fx.proc.Launch(ctx, fx.ui, launch.Request{Kind: valueobject.KindInApp, Sku: "coins"})
		assert.ErrorIs(t, err, domainErrors.ErrAlreadyReleased)
		assert.Empty(t, fx.reporter.all())
		assert.Equal(t, valueobject.StateUnbound, fx.proc.ConnectionState())
	})

	t.Run("resolves the pending flow and unbinds", func(t *testing.T) {
		fx := newFixture(t)
		flow := fx.launch(t, valueobject.KindInApp, "coins")

		fx.proc.Release()

		assert.ErrorIs(t, wait(t, flow), domainErrors.ErrAlreadyReleased)
		assert.False(t, fx.proc.IsLaunching())
		assert.Equal(t, 1, fx.host.Unbinds())
		assert.False(t, fx.proc.HandleResult(valueobject.RequestCodeOneTime, launch.ResultOK, fx.receipts.SuccessResult("coins")))
	})

	t.Run("queued operations run before the service is unbound", func(t *testing.T) {
		fx := newFixture(t)
		gate := make(chan struct{})
		started := make(chan struct{})
		fx.svc.On("ConsumePurchase", mock.Anything, 3, packageName, "slow").
			Run(func(mock.Arguments) {
				close(started)
				<-gate
			}).
			Return(0, nil).Once()
		fx.svc.On("ConsumePurchase", mock.Anything, 3, packageName, "queued").Return(0, nil).Once()

		first := make(chan error, 1)
		go func() { first <- fx.proc.Consume(ctx, "slow") }()
		<-started

		second := make(chan error, 1)
		go func() { second <- fx.proc.Consume(ctx, "queued") }()
		time.Sleep(20 * time.Millisecond)

		released := make(chan struct{})
		go func() {
			fx.proc.Release()
			close(released)
		}()
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 0, fx.host.Unbinds())

		close(gate)
		<-released

		assert.NoError(t, <-first)
		assert.NoError(t, <-second)
		assert.Equal(t, 1, fx.host.Unbinds())
		fx.svc.AssertExpectations(t)
	})
}
