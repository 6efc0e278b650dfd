package coordinator

import "sync"

// Subscriber is a live event-stream client. Send emits one notification frame
// and must be safe for concurrent use; implementations serialize writes with
// their own mutex so a frame is never interleaved with another.
type Subscriber interface {
	// Addr is the remote host:port the subscriber connected from. It is the
	// subscriber's identity: a reconnect from the same address supersedes
	// the earlier registration.
	Addr() string

	// Send delivers one JSON-encoded frame. An error removes the subscriber.
	Send(msg string) error
}

// registry is the set of live subscribers in registration order. The
// coordinator is the sole mutator; the mutex covers the count/list reads
// issued by HTTP handlers when snapshotting for a broadcast query.
type registry struct {
	mu    sync.RWMutex
	subs  map[string]Subscriber
	order []string
}

func newRegistry() *registry {
	return &registry{subs: make(map[string]Subscriber)}
}

// add inserts sub. A later insertion for the same address supersedes the
// earlier one but keeps its position in the fan-out order.
func (r *registry) add(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addr := sub.Addr()
	if _, ok := r.subs[addr]; !ok {
		r.order = append(r.order, addr)
	}
	r.subs[addr] = sub
}

// remove deletes the subscriber for addr; unknown addresses are ignored.
func (r *registry) remove(addr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[addr]; !ok {
		return false
	}
	delete(r.subs, addr)
	for i, a := range r.order {
		if a == addr {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// list returns the live subscribers in registration order.
func (r *registry) list() []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Subscriber, 0, len(r.subs))
	for _, addr := range r.order {
		out = append(out, r.subs[addr])
	}
	return out
}
