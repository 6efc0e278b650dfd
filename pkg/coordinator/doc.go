/*
Package coordinator implements the serialized actor at the core of cvld.

A single worker goroutine drains a FIFO channel of operation envelopes; all
mutations of the object store, the subscriber registry and the broadcast-query
tracker happen on that goroutine, one operation at a time. HTTP handlers are
pure producers: they enqueue operations and, for broadcast queries, block on
the query's condition variable until the replies arrive or the 2 second
deadline passes. The queue is the mutex.

Notification frames are JSON envelopes {key, operation, meta} with operations
id, update, delete, control and query. For any single subscriber, frames
arrive in the order the coordinator emitted them; delivery order across
subscribers is unspecified. A subscriber whose send fails is removed after the
current fan-out completes.
*/
package coordinator
