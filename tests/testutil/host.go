package testutil

import (
	"sync"

	"github.com/bivex/iab-client/internal/billing/connection"
)

// HostMode selects how a FakeHost answers bind requests.
type HostMode int

const (
	// HostConnectSync reports the connection from inside BindService.
	HostConnectSync HostMode = iota
	// HostConnectAsync reports the connection from another goroutine.
	HostConnectAsync
	// HostRefuse makes BindService return false.
	HostRefuse
	// HostSilent accepts the bind and never reports back.
	HostSilent
	// HostDie reports a dead binding instead of a connection.
	HostDie
)

// FakeHost is an in-memory connection.Host.
type FakeHost struct {
	mu       sync.Mutex
	service  connection.Service
	mode     HostMode
	binds    int
	unbinds  int
	listener connection.ServiceListener
}

// NewFakeHost creates a host that hands out svc.
func NewFakeHost(svc connection.Service, mode HostMode) *FakeHost {
	return &FakeHost{service: svc, mode: mode}
}

func (h *FakeHost) SetMode(mode HostMode) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mode = mode
}

func (h *FakeHost) BindService(listener connection.ServiceListener) bool {
	h.mu.Lock()
	mode := h.mode
	svc := h.service
	if mode != HostRefuse {
		h.binds++
		h.listener = listener
	}
	h.mu.Unlock()

	switch mode {
	case HostRefuse:
		return false
	case HostConnectSync:
		listener.OnServiceConnected(svc)
	case HostConnectAsync:
		go listener.OnServiceConnected(svc)
	case HostDie:
		go listener.OnBindingDied()
	}
	return true
}

func (h *FakeHost) UnbindService(listener connection.ServiceListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unbinds++
	if h.listener == listener {
		h.listener = nil
	}
}

// Disconnect simulates the platform dropping the current binding.
func (h *FakeHost) Disconnect() {
	h.mu.Lock()
	listener := h.listener
	h.mu.Unlock()
	if listener != nil {
		listener.OnServiceDisconnected()
	}
}

// Connect reports a connection to the current listener, for HostSilent.
func (h *FakeHost) Connect() {
	h.mu.Lock()
	listener := h.listener
	svc := h.service
	h.mu.Unlock()
	if listener != nil {
		listener.OnServiceConnected(svc)
	}
}

func (h *FakeHost) Binds() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.binds
}

func (h *FakeHost) Unbinds() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unbinds
}
