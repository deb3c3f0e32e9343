package launch

import "sync/atomic"

// Owner identifies the flow holding the lock.
type Owner struct {
	FlowID      string
	RequestCode int
}

// Lock is a single-flight guard for purchase flows. Each processor owns
// one; acquiring never waits.
type Lock struct {
	owner atomic.Pointer[Owner]
}

// NewLock creates an idle lock
func NewLock() *Lock {
	return &Lock{}
}

// TryAcquire locks for o if the lock is idle.
func (l *Lock) TryAcquire(o *Owner) bool {
	return l.owner.CompareAndSwap(nil, o)
}

// Release unlocks if o still holds the lock. Releasing twice, or after
// another owner took over, is a no-op that reports false.
func (l *Lock) Release(o *Owner) bool {
	return l.owner.CompareAndSwap(o, nil)
}

// Reset unlocks regardless of the owner.
func (l *Lock) Reset() {
	l.owner.Store(nil)
}

func (l *Lock) Locked() bool {
	return l.owner.Load() != nil
}

// Owner returns the current holder, or nil when idle.
func (l *Lock) Owner() *Owner {
	return l.owner.Load()
}
