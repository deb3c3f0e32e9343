// Package connection owns the binding to the out-of-process billing service.
package connection

import (
	"context"

	"github.com/bivex/iab-client/internal/billing/bundle"
	"github.com/bivex/iab-client/internal/domain/valueobject"
)

// Service is the billing service reachable through a live binding. Calls
// return a transport error when the remote call itself fails; protocol
// failures are reported through response codes inside the reply.
type Service interface {
	IsBillingSupported(ctx context.Context, apiVersion int, packageName string, kind valueobject.ProductKind) (int, error)
	GetSkuDetails(ctx context.Context, apiVersion int, packageName string, kind valueobject.ProductKind, query bundle.Bundle) (bundle.Bundle, error)
	GetPurchases(ctx context.Context, apiVersion int, packageName string, kind valueobject.ProductKind, continuationToken string) (bundle.Bundle, error)
	GetBuyIntent(ctx context.Context, apiVersion int, packageName, sku string, kind valueobject.ProductKind, developerPayload string) (bundle.Bundle, error)
	GetBuyIntentToReplaceSkus(ctx context.Context, apiVersion int, packageName string, oldSkus []string, sku string, kind valueobject.ProductKind, developerPayload string) (bundle.Bundle, error)
	ConsumePurchase(ctx context.Context, apiVersion int, packageName, purchaseToken string) (int, error)
}

// ServiceListener receives binding events from the host. Events may arrive
// on any goroutine, including synchronously from inside Host.BindService.
type ServiceListener interface {
	OnServiceConnected(svc Service)
	OnServiceDisconnected()
	OnBindingDied()
}

// Host is the environment that can bind to the billing service.
type Host interface {
	// BindService starts binding and reports false when the host refuses
	// to initiate it (service absent, permission denied).
	BindService(listener ServiceListener) bool
	UnbindService(listener ServiceListener)
}
