package mocks

import (
	"github.com/stretchr/testify/mock"
)

// MockUIHost is a mock implementation of launch.UIHost
type MockUIHost struct {
	mock.Mock
}

// NewMockUIHost creates a new mock UI host
func NewMockUIHost() *MockUIHost {
	return &MockUIHost{}
}

func (m *MockUIHost) StartConfirmationFlow(launchToken any, requestCode int) error {
	args := m.Called(launchToken, requestCode)
	return args.Error(0)
}
