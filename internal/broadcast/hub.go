package broadcast

import "sync"

// hub tracks the set of connected peers under a plain mutex: the broadcast
// and command tasks both only need brief add/remove/snapshot access, never
// a long-held critical section, so there's no need for a dedicated run
// loop or channel-based registration.
type hub struct {
	mu    sync.Mutex
	peers map[*peer]struct{}
}

func newHub() *hub {
	return &hub{peers: make(map[*peer]struct{})}
}

func (h *hub) add(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[p] = struct{}{}
}

func (h *hub) remove(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, p)
}

// snapshot returns the current peer set as a slice, safe to range over
// without holding the hub lock: the client-list lock must never be held
// across peer I/O.
func (h *hub) snapshot() []*peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		out = append(out, p)
	}
	return out
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}
