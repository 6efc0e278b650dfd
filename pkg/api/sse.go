package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
)

var errSubscriberClosed = errors.New("subscriber connection closed")

// sseSubscriber adapts one open /events response into a coordinator
// subscriber. The mutex serializes Send so a frame's data lines are never
// interleaved with another frame's.
type sseSubscriber struct {
	addr    string
	w       io.Writer
	flusher http.Flusher

	mu     sync.Mutex
	closed bool
}

func newSSESubscriber(addr string, w io.Writer, flusher http.Flusher) *sseSubscriber {
	return &sseSubscriber{addr: addr, w: w, flusher: flusher}
}

func (s *sseSubscriber) Addr() string {
	return s.addr
}

// Send frames msg as SSE: one "data: <line>" record per newline in the
// payload, terminated by the blank line.
func (s *sseSubscriber) Send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSubscriberClosed
	}
	var buf bytes.Buffer
	for _, line := range strings.Split(msg, "\n") {
		buf.WriteString("data: ")
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// close marks the subscriber dead before its handler returns, so a fan-out
// racing the disconnect cannot write to a finished response.
func (s *sseSubscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// handleEvents upgrades the request to a server-sent event stream and
// registers the caller as a subscriber. The handler parks until the client
// disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.send404(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.send404(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := newSSESubscriber(r.RemoteAddr, w, flusher)
	s.coord.AddConnection(sub)

	<-r.Context().Done()
	sub.close()
	s.coord.RemoveConnection(sub)
}
