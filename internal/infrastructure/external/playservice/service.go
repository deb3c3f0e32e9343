package playservice

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/bivex/iab-client/internal/billing/bundle"
	"github.com/bivex/iab-client/internal/billing/responsecode"
	"github.com/bivex/iab-client/internal/domain/valueobject"
)

type request struct {
	APIVersion        int      `json:"apiVersion"`
	PackageName       string   `json:"packageName"`
	Type              string   `json:"type,omitempty"`
	Sku               string   `json:"sku,omitempty"`
	OldSkus           []string `json:"oldSkus,omitempty"`
	ItemIDs           []string `json:"ITEM_ID_LIST,omitempty"`
	ContinuationToken string   `json:"continuationToken,omitempty"`
	DeveloperPayload  string   `json:"developerPayload,omitempty"`
	PurchaseToken     string   `json:"purchaseToken,omitempty"`
}

// Service implements connection.Service over the daemon's HTTP API.
// Replies are decoded into bundles, so integers arrive as int64.
type Service struct {
	client  *Client
	decoder *responsecode.Decoder
	logger  *zap.Logger

	// onTransportError is told when a call fails below the protocol level.
	onTransportError func(err error)
}

// NewService creates a Service
func NewService(client *Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:  client,
		decoder: responsecode.NewDecoder(logger),
		logger:  logger,
	}
}

func (s *Service) IsBillingSupported(ctx context.Context, apiVersion int, packageName string, kind valueobject.ProductKind) (int, error) {
	reply, err := s.call(ctx, pathBillingSupported, request{
		APIVersion:  apiVersion,
		PackageName: packageName,
		Type:        kind.String(),
	})
	if err != nil {
		return 0, err
	}
	return s.decoder.FromResponse(reply)
}

func (s *Service) GetSkuDetails(ctx context.Context, apiVersion int, packageName string, kind valueobject.ProductKind, query bundle.Bundle) (bundle.Bundle, error) {
	ids, _ := query.Strings(bundle.KeyItemIDList)
	token, _ := query.String(bundle.KeyContinuationToken)
	return s.call(ctx, pathSkuDetails, request{
		APIVersion:        apiVersion,
		PackageName:       packageName,
		Type:              kind.String(),
		ItemIDs:           ids,
		ContinuationToken: token,
	})
}

func (s *Service) GetPurchases(ctx context.Context, apiVersion int, packageName string, kind valueobject.ProductKind, continuationToken string) (bundle.Bundle, error) {
	return s.call(ctx, pathPurchases, request{
		APIVersion:        apiVersion,
		PackageName:       packageName,
		Type:              kind.String(),
		ContinuationToken: continuationToken,
	})
}

func (s *Service) GetBuyIntent(ctx context.Context, apiVersion int, packageName, sku string, kind valueobject.ProductKind, developerPayload string) (bundle.Bundle, error) {
	return s.call(ctx, pathBuyIntent, request{
		APIVersion:       apiVersion,
		PackageName:      packageName,
		Type:             kind.String(),
		Sku:              sku,
		DeveloperPayload: developerPayload,
	})
}

func (s *Service) GetBuyIntentToReplaceSkus(ctx context.Context, apiVersion int, packageName string, oldSkus []string, sku string, kind valueobject.ProductKind, developerPayload string) (bundle.Bundle, error) {
	return s.call(ctx, pathBuyIntentReplace, request{
		APIVersion:       apiVersion,
		PackageName:      packageName,
		Type:             kind.String(),
		Sku:              sku,
		OldSkus:          oldSkus,
		DeveloperPayload: developerPayload,
	})
}

func (s *Service) ConsumePurchase(ctx context.Context, apiVersion int, packageName, purchaseToken string) (int, error) {
	reply, err := s.call(ctx, pathConsume, request{
		APIVersion:    apiVersion,
		PackageName:   packageName,
		PurchaseToken: purchaseToken,
	})
	if err != nil {
		return 0, err
	}
	return s.decoder.FromResponse(reply)
}

func (s *Service) call(ctx context.Context, path string, req request) (bundle.Bundle, error) {
	body, err := s.client.post(ctx, path, req)
	if err != nil {
		var statusErr *StatusError
		if s.onTransportError != nil && !errors.As(err, &statusErr) && ctx.Err() == nil {
			s.onTransportError(err)
		}
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	return bundle.FromJSON(body)
}
