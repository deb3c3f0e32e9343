package launch

import "sync"

// pendingTable maps request codes to flows waiting for their UI result.
type pendingTable struct {
	mu    sync.Mutex
	flows map[int]*Flow
}

func newPendingTable() *pendingTable {
	return &pendingTable{flows: make(map[int]*Flow)}
}

// put registers f unless it is already resolved. Resolution happens before
// removal, so a flow resolved concurrently is either refused here or removed
// by its resolver afterwards.
func (t *pendingTable) put(f *Flow) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f.Resolved() {
		return false
	}
	t.flows[f.RequestCode()] = f
	return true
}

// take removes and returns the flow for requestCode.
func (t *pendingTable) take(requestCode int) *Flow {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.flows[requestCode]
	if !ok {
		return nil
	}
	delete(t.flows, requestCode)
	return f
}

// remove deletes f only if it is still the entry for its request code.
func (t *pendingTable) remove(f *Flow) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.flows[f.RequestCode()] == f {
		delete(t.flows, f.RequestCode())
	}
}

func (t *pendingTable) takeAll() []*Flow {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Flow, 0, len(t.flows))
	for code, f := range t.flows {
		out = append(out, f)
		delete(t.flows, code)
	}
	return out
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.flows)
}
