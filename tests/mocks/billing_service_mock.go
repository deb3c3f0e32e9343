package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bivex/iab-client/internal/billing/bundle"
	"github.com/bivex/iab-client/internal/domain/valueobject"
)

// MockBillingService is a mock implementation of connection.Service
type MockBillingService struct {
	mock.Mock
}

// NewMockBillingService creates a new mock billing service
func NewMockBillingService() *MockBillingService {
	return &MockBillingService{}
}

func (m *MockBillingService) IsBillingSupported(ctx context.Context, apiVersion int, packageName string, kind valueobject.ProductKind) (int, error) {
	args := m.Called(ctx, apiVersion, packageName, kind)
	return args.Int(0), args.Error(1)
}

func (m *MockBillingService) GetSkuDetails(ctx context.Context, apiVersion int, packageName string, kind valueobject.ProductKind, query bundle.Bundle) (bundle.Bundle, error) {
	args := m.Called(ctx, apiVersion, packageName, kind, query)
	return bundleArg(args, 0), args.Error(1)
}

func (m *MockBillingService) GetPurchases(ctx context.Context, apiVersion int, packageName string, kind valueobject.ProductKind, continuationToken string) (bundle.Bundle, error) {
	args := m.Called(ctx, apiVersion, packageName, kind, continuationToken)
	return bundleArg(args, 0), args.Error(1)
}

func (m *MockBillingService) GetBuyIntent(ctx context.Context, apiVersion int, packageName, sku string, kind valueobject.ProductKind, developerPayload string) (bundle.Bundle, error) {
	args := m.Called(ctx, apiVersion, packageName, sku, kind, developerPayload)
	return bundleArg(args, 0), args.Error(1)
}

func (m *MockBillingService) GetBuyIntentToReplaceSkus(ctx context.Context, apiVersion int, packageName string, oldSkus []string, sku string, kind valueobject.ProductKind, developerPayload string) (bundle.Bundle, error) {
	args := m.Called(ctx, apiVersion, packageName, oldSkus, sku, kind, developerPayload)
	return bundleArg(args, 0), args.Error(1)
}

func (m *MockBillingService) ConsumePurchase(ctx context.Context, apiVersion int, packageName, purchaseToken string) (int, error) {
	args := m.Called(ctx, apiVersion, packageName, purchaseToken)
	return args.Int(0), args.Error(1)
}

func bundleArg(args mock.Arguments, i int) bundle.Bundle {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).(bundle.Bundle)
}
