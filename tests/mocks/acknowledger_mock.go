package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bivex/iab-client/internal/domain/valueobject"
)

// MockAcknowledger is a mock implementation of processor.Acknowledger
type MockAcknowledger struct {
	mock.Mock
}

// NewMockAcknowledger creates a new mock acknowledger
func NewMockAcknowledger() *MockAcknowledger {
	return &MockAcknowledger{}
}

func (m *MockAcknowledger) Acknowledge(ctx context.Context, kind valueobject.ProductKind, sku, purchaseToken, developerPayload string) error {
	args := m.Called(ctx, kind, sku, purchaseToken, developerPayload)
	return args.Error(0)
}
