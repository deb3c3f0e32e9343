package playservice

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/bivex/iab-client/internal/billing/connection"
)

type bindReply struct {
	Bound bool `json:"bound"`
}

// Host implements connection.Host. Binding asks the daemon to accept the
// package; a transport failure on a later call counts as a disconnect.
type Host struct {
	client      *Client
	service     *Service
	packageName string
	logger      *zap.Logger

	mu       sync.Mutex
	listener connection.ServiceListener
	closed   bool
}

// NewHost creates a Host for packageName
func NewHost(client *Client, packageName string, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Host{
		client:      client,
		packageName: packageName,
		logger:      logger,
	}
	h.service = NewService(client, logger)
	h.service.onTransportError = h.transportFailed
	return h
}

// Service returns the daemon-backed service handed to listeners
func (h *Host) Service() *Service {
	return h.service
}

// BindService starts an asynchronous bind. It refuses once the host is
// closed.
func (h *Host) BindService(listener connection.ServiceListener) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.listener = listener
	h.mu.Unlock()

	go func() {
		body, err := h.client.post(context.Background(), pathBind, map[string]string{"packageName": h.packageName})
		var reply bindReply
		if err == nil {
			err = json.Unmarshal(body, &reply)
		}
		if err != nil || !reply.Bound {
			h.logger.Warn("Billing daemon refused the binding", zap.Error(err))
			listener.OnBindingDied()
			return
		}
		listener.OnServiceConnected(h.service)
	}()
	return true
}

// UnbindService tells the daemon the client is gone. Errors are logged only.
func (h *Host) UnbindService(listener connection.ServiceListener) {
	h.mu.Lock()
	if h.listener == listener {
		h.listener = nil
	}
	h.mu.Unlock()

	if _, err := h.client.post(context.Background(), pathUnbind, map[string]string{"packageName": h.packageName}); err != nil {
		h.logger.Debug("Unbind failed", zap.Error(err))
	}
}

// Close makes later binds fail.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

func (h *Host) transportFailed(err error) {
	h.mu.Lock()
	listener := h.listener
	h.listener = nil
	h.mu.Unlock()

	if listener != nil {
		h.logger.Warn("Billing daemon unreachable, dropping the binding", zap.Error(err))
		listener.OnServiceDisconnected()
	}
}
