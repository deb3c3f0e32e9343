package launch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/bivex/iab-client/internal/domain/entity"
	"github.com/bivex/iab-client/internal/domain/valueobject"
)

// State is the position of a purchase flow in its state machine.
type State int32

const (
	StateIdle State = iota
	StateRequestingToken
	StateAwaitingUIResult
	StateVerifying
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestingToken:
		return "requesting_token"
	case StateAwaitingUIResult:
		return "awaiting_ui_result"
	case StateVerifying:
		return "verifying"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) final() bool {
	return s == StateCompleted || s == StateFailed
}

// Request describes a purchase to launch. A non-empty PreviousSkus turns it
// into a subscription upgrade or downgrade.
type Request struct {
	Kind             valueobject.ProductKind
	Sku              string
	PreviousSkus     []string
	DeveloperPayload string
}

// IsReplacement reports whether the request replaces existing products.
func (r Request) IsReplacement() bool {
	return len(r.PreviousSkus) > 0
}

// Flow is one purchase flow. It is resolved exactly once.
type Flow struct {
	req   Request
	owner *Owner
	state atomic.Int32

	once     sync.Once
	done     chan struct{}
	purchase *entity.Purchase
	err      error
}

func newFlow(req Request, owner *Owner) *Flow {
	return &Flow{
		req:   req,
		owner: owner,
		done:  make(chan struct{}),
	}
}

// ID returns the flow id used in logs.
func (f *Flow) ID() string {
	return f.owner.FlowID
}

// RequestCode returns the tag the result will be correlated by.
func (f *Flow) RequestCode() int {
	return f.owner.RequestCode
}

// Request returns the launched request
func (f *Flow) Request() Request {
	return f.req
}

func (f *Flow) State() State {
	return State(f.state.Load())
}

// setState moves the flow on. A resolved flow keeps its final state.
func (f *Flow) setState(s State) {
	for {
		cur := f.state.Load()
		if State(cur).final() {
			return
		}
		if f.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

// resolve stores the outcome. Only the first call has an effect.
func (f *Flow) resolve(purchase *entity.Purchase, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.purchase, f.err = purchase, err
		if err != nil {
			f.state.Store(int32(StateFailed))
		} else {
			f.state.Store(int32(StateCompleted))
		}
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the flow is resolved.
func (f *Flow) Done() <-chan struct{} {
	return f.done
}

// Resolved reports whether the flow already has an outcome.
func (f *Flow) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the flow is resolved or ctx is done. Giving up on the
// wait does not cancel the flow.
func (f *Flow) Wait(ctx context.Context) (*entity.Purchase, error) {
	select {
	case <-f.done:
		return f.purchase, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
