// Package publisher acknowledges purchases through the Google Play
// Developer API.
package publisher

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/option"

	"github.com/bivex/iab-client/internal/domain/valueobject"
)

// Acknowledger implements processor.Acknowledger.
type Acknowledger struct {
	service     *androidpublisher.Service
	packageName string
	logger      *zap.Logger
}

// NewAcknowledger creates an acknowledger for packageName. With
// serviceAccountJSON the client authenticates as that service account;
// otherwise opts must supply authentication.
func NewAcknowledger(ctx context.Context, packageName string, serviceAccountJSON []byte, logger *zap.Logger, opts ...option.ClientOption) (*Acknowledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(serviceAccountJSON) > 0 {
		creds, err := google.CredentialsFromJSON(ctx, serviceAccountJSON, androidpublisher.AndroidpublisherScope)
		if err != nil {
			return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
		}
		opts = append(opts, option.WithTokenSource(creds.TokenSource))
	}

	service, err := androidpublisher.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Android Publisher service: %w", err)
	}
	return &Acknowledger{service: service, packageName: packageName, logger: logger}, nil
}

// Acknowledge marks the purchase as acknowledged so the store does not
// refund it.
func (a *Acknowledger) Acknowledge(ctx context.Context, kind valueobject.ProductKind, sku, purchaseToken, developerPayload string) error {
	var err error
	switch kind {
	case valueobject.KindSubscription:
		err = a.service.Purchases.Subscriptions.Acknowledge(a.packageName, sku, purchaseToken,
			&androidpublisher.SubscriptionPurchasesAcknowledgeRequest{DeveloperPayload: developerPayload},
		).Context(ctx).Do()
	case valueobject.KindInApp:
		err = a.service.Purchases.Products.Acknowledge(a.packageName, sku, purchaseToken,
			&androidpublisher.ProductPurchasesAcknowledgeRequest{DeveloperPayload: developerPayload},
		).Context(ctx).Do()
	default:
		return fmt.Errorf("unsupported product kind %q", kind)
	}
	if err != nil {
		return fmt.Errorf("failed to acknowledge %s purchase of %s: %w", kind, sku, err)
	}

	a.logger.Info("Purchase acknowledged",
		zap.String("sku", sku),
		zap.String("kind", kind.String()),
	)
	return nil
}
