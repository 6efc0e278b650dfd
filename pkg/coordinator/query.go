package coordinator

import (
	"sync"
	"time"
)

// MaxQueryWait bounds how long a broadcast query collects replies.
const MaxQueryWait = 2 * time.Second

// Query collects broadcast-query replies from subscribers. The coordinator
// records replies through AddResponse; the HTTP handler that initiated the
// query blocks in Wait until every expected subscriber has replied or the
// deadline passes.
type Query struct {
	mu   sync.Mutex
	cond *sync.Cond

	deadline time.Time
	expected int
	replied  map[string]struct{}
	replies  []any

	timer *time.Timer
}

// NewQuery creates a query expecting one reply from each of expected
// subscribers, with a fixed deadline of now plus MaxQueryWait.
func NewQuery(expected int) *Query {
	q := &Query{
		deadline: time.Now().Add(MaxQueryWait),
		expected: expected,
		replied:  make(map[string]struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	// Wake the waiter at the deadline so the cond loop can observe expiry.
	// The lock closes the window between the waiter's deadline check and its
	// cond.Wait, where an unlocked broadcast could be lost.
	q.timer = time.AfterFunc(MaxQueryWait, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	return q
}

// Expired reports whether the deadline has passed.
func (q *Query) Expired(now time.Time) bool {
	return !now.Before(q.deadline)
}

// AddResponse records a reply from the subscriber at addr. The reply is not
// accepted when the query has expired or when addr already replied; extras
// are rejected silently.
func (q *Query) AddResponse(addr string, payload any) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Expired(time.Now()) {
		return false
	}
	if _, ok := q.replied[addr]; ok {
		return false
	}
	q.replied[addr] = struct{}{}
	q.replies = append(q.replies, payload)
	q.cond.Broadcast()
	return true
}

// Wait blocks until the reply list reaches the expected count or the deadline
// passes, whichever is first, and returns the replies collected so far.
func (q *Query) Wait() []any {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.replies) < q.expected && !q.Expired(time.Now()) {
		q.cond.Wait()
	}
	q.timer.Stop()
	out := make([]any, len(q.replies))
	copy(out, q.replies)
	return out
}
