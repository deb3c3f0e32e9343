package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	domainErrors "github.com/bivex/iab-client/internal/domain/errors"
	"github.com/bivex/iab-client/internal/domain/valueobject"
)

const DefaultBindTimeout = 10 * time.Second

var (
	errBindRefused = errors.New("host refused to bind the billing service")
	errBindTimeout = errors.New("timed out waiting for the billing service")
	errBindingDied = errors.New("binding died before the service connected")
)

// Manager binds to the billing service on demand and rebinds after an
// unexpected disconnection.
type Manager struct {
	host    Host
	timeout time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	state    valueobject.ConnectionState
	service  Service
	current  *attempt
	released bool
}

// NewManager creates an unbound manager
func NewManager(host Host, timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = DefaultBindTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		host:    host,
		timeout: timeout,
		logger:  logger,
		state:   valueobject.StateUnbound,
	}
}

// State returns the current connection state
func (m *Manager) State() valueobject.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// EnsureBound returns the bound service, binding first if needed. It blocks
// until the bind completes, fails, times out or ctx is done.
func (m *Manager) EnsureBound(ctx context.Context) (Service, error) {
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return nil, domainErrors.AlreadyReleased()
	}
	if m.state == valueobject.StateBound {
		svc := m.service
		m.mu.Unlock()
		return svc, nil
	}
	stale := m.current
	a := newAttempt(m)
	m.current = a
	m.service = nil
	m.state = valueobject.StateBinding
	m.mu.Unlock()

	if stale != nil {
		m.logger.Info("Dropping residual binding before rebinding")
		m.host.UnbindService(stale)
	}

	m.logger.Debug("Binding billing service")
	if !m.host.BindService(a) {
		m.abandon(a, errBindRefused, false)
		m.logger.Error("Billing service bind refused")
		return nil, domainErrors.BindServiceFailed(errBindRefused)
	}

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case <-a.done:
	case <-timer.C:
		m.abandon(a, errBindTimeout, true)
		m.logger.Error("Billing service bind timed out", zap.Duration("timeout", m.timeout))
		return nil, domainErrors.BindServiceFailed(errBindTimeout)
	case <-ctx.Done():
		m.abandon(a, ctx.Err(), true)
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	m.logger.Info("Billing service bound")
	return m.service, nil
}

// Release unbinds unconditionally. Every later EnsureBound fails with
// AlreadyReleased.
func (m *Manager) Release() {
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return
	}
	m.released = true
	a := m.current
	m.current = nil
	m.service = nil
	m.state = valueobject.StateUnbound
	m.mu.Unlock()

	if a != nil {
		a.finish(domainErrors.AlreadyReleased())
		m.host.UnbindService(a)
	}
	m.logger.Info("Billing service released")
}

// abandon drops a bind attempt that will not complete.
func (m *Manager) abandon(a *attempt, cause error, unbind bool) {
	m.mu.Lock()
	owned := m.current == a
	if owned {
		m.current = nil
		m.service = nil
		m.state = valueobject.StateUnbound
	}
	m.mu.Unlock()

	a.finish(domainErrors.BindServiceFailed(cause))
	if owned && unbind {
		m.host.UnbindService(a)
	}
}

// attempt is the listener handed to the host for one bind. Events from an
// attempt that is no longer current are ignored.
type attempt struct {
	m    *Manager
	once sync.Once
	done chan struct{}
	err  error
}

func newAttempt(m *Manager) *attempt {
	return &attempt{m: m, done: make(chan struct{})}
}

func (a *attempt) finish(err error) {
	a.once.Do(func() {
		a.err = err
		close(a.done)
	})
}

func (a *attempt) OnServiceConnected(svc Service) {
	m := a.m
	m.mu.Lock()
	if m.current != a || m.released {
		m.mu.Unlock()
		return
	}
	m.service = svc
	m.state = valueobject.StateBound
	m.mu.Unlock()
	a.finish(nil)
}

func (a *attempt) OnServiceDisconnected() {
	a.disconnect("Billing service disconnected", errBindingDied)
}

func (a *attempt) OnBindingDied() {
	a.disconnect("Billing service binding died", errBindingDied)
}

func (a *attempt) disconnect(msg string, cause error) {
	m := a.m
	m.mu.Lock()
	if m.current != a || m.released {
		m.mu.Unlock()
		return
	}
	prev := m.state
	m.service = nil
	m.state = valueobject.StateDisconnected
	m.mu.Unlock()

	m.logger.Warn(msg, zap.Stringer("previous_state", prev))
	a.finish(domainErrors.BindServiceFailed(cause))
}
