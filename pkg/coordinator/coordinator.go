package coordinator

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/cvlviz/cvld/pkg/log"
	"github.com/cvlviz/cvld/pkg/metrics"
	"github.com/cvlviz/cvld/pkg/object"
)

// opQueueDepth bounds the operation channel. Producers block briefly if the
// coordinator falls this far behind, which keeps memory bounded without
// changing FIFO semantics.
const opQueueDepth = 1024

// Coordinator is the serialized actor that owns all mutable core state: the
// object store, the subscriber registry and the broadcast-query tracker. It
// drains a FIFO queue of operation envelopes one at a time, so the components
// it drives need no per-operation locking.
type Coordinator struct {
	store    *object.Store
	readOnly bool

	ops    chan op
	stopCh chan struct{}
	done   chan struct{}

	subs    *registry
	queries []*Query

	logger zerolog.Logger
}

// New creates a coordinator over store. In read-only mode Update is a no-op.
func New(store *object.Store, readOnly bool) *Coordinator {
	return &Coordinator{
		store:    store,
		readOnly: readOnly,
		ops:      make(chan op, opQueueDepth),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		subs:     newRegistry(),
		logger:   log.WithComponent("coordinator"),
	}
}

// Start launches the operation worker.
func (c *Coordinator) Start() {
	go c.run()
}

// Stop shuts the worker down after the operation in flight completes.
func (c *Coordinator) Stop() {
	close(c.stopCh)
	<-c.done
}

func (c *Coordinator) run() {
	defer close(c.done)
	for {
		select {
		case o := <-c.ops:
			c.dispatch(o)
		case <-c.stopCh:
			return
		}
	}
}

func (c *Coordinator) enqueue(o op) {
	select {
	case c.ops <- o:
	case <-c.stopCh:
	}
}

func (c *Coordinator) dispatch(o op) {
	metrics.OpsProcessed.WithLabelValues(o.name()).Inc()
	switch v := o.(type) {
	case opAddConn:
		c.addConnection(v.sub)
	case opRemoveConn:
		c.removeConnection(v.sub.Addr())
	case opPost:
		c.post(v.frame)
	case opUpdate:
		c.update(v.key, v.metadata, v.data)
	case opMsg:
		c.handleMsg(v.addr, v.payload)
	case opAddQuery:
		c.queries = append(c.queries, v.q)
		metrics.QueriesActive.Set(float64(len(c.queries)))
	case opCleanQueries:
		c.cleanQueries()
	}
}

// AddConnection registers sub and sends it an identity frame.
func (c *Coordinator) AddConnection(sub Subscriber) {
	c.enqueue(opAddConn{sub: sub})
}

// RemoveConnection drops sub from the registry.
func (c *Coordinator) RemoveConnection(sub Subscriber) {
	c.enqueue(opRemoveConn{sub: sub})
}

// Update upserts the object for key. Passing nil metadata and nil data
// deletes the key. Ignored in read-only mode.
func (c *Coordinator) Update(key string, metadata object.Metadata, data []byte) {
	if c.readOnly {
		c.logger.Debug().Str("key", key).Msg("Read-only, ignoring update")
		return
	}
	c.enqueue(opUpdate{key: key, metadata: metadata, data: data})
}

// Control broadcasts a control frame carrying metadata to all subscribers.
func (c *Coordinator) Control(metadata object.Metadata) {
	c.Post(Frame{Operation: OpControl, Meta: metadata})
}

// Post encodes frame and fans it out to every live subscriber.
func (c *Coordinator) Post(frame Frame) {
	msg, err := frame.Encode()
	if err != nil {
		c.logger.Error().Err(err).Str("operation", frame.Operation).Msg("Failed to encode frame")
		return
	}
	c.enqueue(opPost{frame: msg})
}

// HandleState routes a subscriber's state report to an outstanding broadcast
// query. addr identifies the replying client connection.
func (c *Coordinator) HandleState(addr string, payload any) {
	c.enqueue(opMsg{addr: addr, payload: payload})
}

// SubscriberCount returns the current registry size.
func (c *Coordinator) SubscriberCount() int {
	return c.subs.count()
}

// StartQuery begins a broadcast query: the expected reply count is a snapshot
// of the current subscriber set, then clean_queries, add_query and the query
// frame are enqueued in that order. Cleaning first keeps the new query from
// being reaped against stale deadlines; posting last guarantees replies
// arriving synchronously can find the query. The caller blocks on Wait.
func (c *Coordinator) StartQuery() *Query {
	q := NewQuery(c.subs.count())
	c.enqueue(opCleanQueries{})
	c.enqueue(opAddQuery{q: q})
	c.Post(Frame{Operation: OpQuery})
	return q
}

func (c *Coordinator) addConnection(sub Subscriber) {
	c.subs.add(sub)
	metrics.SubscribersTotal.Set(float64(c.subs.count()))
	frame := Frame{Key: c.store.NextSubscriberID(), Operation: OpID}
	msg, err := frame.Encode()
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to encode identity frame")
		return
	}
	if err := sub.Send(msg); err != nil {
		c.logger.Warn().Err(err).Str("subscriber", sub.Addr()).Msg("Identity frame send failed")
		metrics.SendFailures.Inc()
		c.removeConnection(sub.Addr())
	}
}

func (c *Coordinator) removeConnection(addr string) {
	if c.subs.remove(addr) {
		c.logger.Debug().Str("subscriber", addr).Msg("Subscriber removed")
	}
	metrics.SubscribersTotal.Set(float64(c.subs.count()))
	c.cleanQueries()
}

// post delivers an encoded frame to every subscriber in registration order.
// Subscribers whose send fails are removed after the fan-out completes.
func (c *Coordinator) post(msg string) {
	var failed []string
	for _, sub := range c.subs.list() {
		if err := sub.Send(msg); err != nil {
			c.logger.Warn().Err(err).Str("subscriber", sub.Addr()).Msg("Send failed, dropping subscriber")
			metrics.SendFailures.Inc()
			failed = append(failed, sub.Addr())
			continue
		}
		metrics.NotificationsSent.Inc()
	}
	for _, addr := range failed {
		c.removeConnection(addr)
	}
}

func (c *Coordinator) update(key string, metadata object.Metadata, data []byte) {
	if metadata == nil && data == nil {
		// Delete. An unknown key still emits the notification so
		// subscribers can drop optimistic local state.
		if obj := c.store.Remove(key); obj != nil && c.store.PersistDir() != "" {
			obj.Purge(c.store.PersistDir())
		}
		metrics.ObjectsTotal.Set(float64(c.store.Len()))
		c.postFrame(Frame{Key: key, Operation: OpDelete})
		return
	}

	obj := c.store.GetOrCreate(key)
	if metadata != nil {
		obj.SetMetadata(metadata)
	}
	if data != nil {
		obj.SetData(data)
	}
	obj.RefreshMetadata()
	if dir := c.store.PersistDir(); dir != "" {
		if err := obj.Persist(dir); err != nil {
			c.logger.Error().Err(err).Str("key", key).Msg("Failed to persist object")
			metrics.PersistFailures.Inc()
		}
	}
	metrics.ObjectsTotal.Set(float64(c.store.Len()))
	// Notifications only start once an object has metadata.
	if obj.HasMetadata() {
		c.postFrame(Frame{Key: key, Operation: OpUpdate})
	}
}

// postFrame encodes and fans out inline, on the worker itself. Going back
// through the queue would also work; delivering before the next operation
// keeps the same per-subscriber ordering either way.
func (c *Coordinator) postFrame(frame Frame) {
	msg, err := frame.Encode()
	if err != nil {
		c.logger.Error().Err(err).Str("operation", frame.Operation).Msg("Failed to encode frame")
		return
	}
	c.post(msg)
}

func (c *Coordinator) handleMsg(addr string, payload any) {
	defer c.cleanQueries()
	for _, q := range c.queries {
		if q.AddResponse(addr, payload) {
			return
		}
	}
	c.logger.Warn().Str("subscriber", addr).Msg("Got unhandled message")
}

func (c *Coordinator) cleanQueries() {
	if len(c.queries) == 0 {
		return
	}
	now := time.Now()
	kept := c.queries[:0]
	for _, q := range c.queries {
		if !q.Expired(now) {
			kept = append(kept, q)
		}
	}
	c.queries = kept
	metrics.QueriesActive.Set(float64(len(c.queries)))
}
