package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryCompletesWhenExpectedReached(t *testing.T) {
	q := NewQuery(2)

	assert.True(t, q.AddResponse("a:1", map[string]any{"from": "A"}))
	assert.True(t, q.AddResponse("b:1", map[string]any{"from": "B"}))

	start := time.Now()
	replies := q.Wait()
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	require.Len(t, replies, 2)
	assert.Equal(t, map[string]any{"from": "A"}, replies[0])
	assert.Equal(t, map[string]any{"from": "B"}, replies[1])
}

func TestQueryRejectsDuplicateReply(t *testing.T) {
	q := NewQuery(2)

	assert.True(t, q.AddResponse("a:1", "first"))
	assert.False(t, q.AddResponse("a:1", "second"))
	assert.True(t, q.AddResponse("b:1", "other"))

	replies := q.Wait()
	require.Len(t, replies, 2)
	assert.Equal(t, "first", replies[0])
	assert.Equal(t, "other", replies[1])
}

func TestQueryTimesOutWithPartialReplies(t *testing.T) {
	q := NewQuery(2)
	assert.True(t, q.AddResponse("a:1", "only"))

	start := time.Now()
	replies := q.Wait()
	elapsed := time.Since(start)

	assert.Equal(t, []any{"only"}, replies)
	assert.GreaterOrEqual(t, elapsed, MaxQueryWait-50*time.Millisecond)
	assert.Less(t, elapsed, MaxQueryWait+500*time.Millisecond)
}

func TestQueryZeroExpectedReturnsImmediately(t *testing.T) {
	q := NewQuery(0)

	start := time.Now()
	replies := q.Wait()
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Empty(t, replies)
}

func TestExpiredQueryRejectsReplies(t *testing.T) {
	q := NewQuery(1)
	q.mu.Lock()
	q.deadline = time.Now().Add(-time.Second)
	q.mu.Unlock()

	assert.False(t, q.AddResponse("a:1", "late"))
	assert.Empty(t, q.Wait())
}

func TestQueryConcurrentRepliesWakeWaiter(t *testing.T) {
	q := NewQuery(3)

	done := make(chan []any, 1)
	go func() { done <- q.Wait() }()

	for _, addr := range []string{"a:1", "b:1", "c:1"} {
		go q.AddResponse(addr, addr)
	}

	select {
	case replies := <-done:
		assert.Len(t, replies, 3)
	case <-time.After(time.Second):
		t.Fatal("waiter did not wake after all replies arrived")
	}
}
