package execution

import "sync"

// pendingIDs maps the identifier of each job created during the run to
// the id the remote service assigned it.
type pendingIDs struct {
	mu  sync.RWMutex
	ids map[string]int
}

func newPendingIDs() *pendingIDs {
	return &pendingIDs{ids: make(map[string]int)}
}

func (p *pendingIDs) set(identifier string, id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids[identifier] = id
}

func (p *pendingIDs) get(identifier string) (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.ids[identifier]
	return id, ok
}
