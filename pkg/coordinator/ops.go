package coordinator

import "github.com/cvlviz/cvld/pkg/object"

// op is the closed set of operation envelopes consumed by the coordinator's
// serialized worker. Each variant carries only the fields it needs.
type op interface {
	name() string
}

// opAddConn registers a subscriber and sends it the identity frame.
type opAddConn struct {
	sub Subscriber
}

// opRemoveConn drops a subscriber by address.
type opRemoveConn struct {
	sub Subscriber
}

// opPost fans an encoded frame out to every live subscriber.
type opPost struct {
	frame string
}

// opUpdate upserts or, when both metadata and data are nil, deletes a key.
type opUpdate struct {
	key      string
	metadata object.Metadata
	data     []byte
}

// opMsg routes a subscriber's state report to an outstanding query.
type opMsg struct {
	addr    string
	payload any
}

// opAddQuery appends a broadcast query to the tracker.
type opAddQuery struct {
	q *Query
}

// opCleanQueries reaps expired queries.
type opCleanQueries struct{}

func (opAddConn) name() string      { return "add_connection" }
func (opRemoveConn) name() string   { return "remove_connection" }
func (opPost) name() string         { return "post" }
func (opUpdate) name() string       { return "update" }
func (opMsg) name() string          { return "msg" }
func (opAddQuery) name() string     { return "add_query" }
func (opCleanQueries) name() string { return "clean_queries" }
