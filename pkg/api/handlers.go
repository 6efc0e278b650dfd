package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cvlviz/cvld/pkg/object"
)

// objectKeyHeader carries the key when it is not a query parameter.
const objectKeyHeader = "X-CVL-Object-Key"

func (s *Server) objectKey(r *http.Request, qs url.Values) string {
	if key := qs.Get("key"); key != "" {
		return key
	}
	return r.Header.Get(objectKeyHeader)
}

// handleObject serves an object's metadata (the default) or raw data.
// GET /object?[meta || data][&key=<key>]
func (s *Server) handleObject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.send404(w, r)
		return
	}
	qs := r.URL.Query()
	obj, ok := s.store.Get(s.objectKey(r, qs))
	if !ok {
		s.send404(w, r)
		return
	}
	if qs.Has("meta") || !qs.Has("data") {
		s.sendJSON(w, r, obj.MetadataSnapshot())
		return
	}
	data := obj.DataSnapshot()
	if data == nil {
		s.send404(w, r)
		return
	}
	s.sendMime(w, r, data, "application/octet-stream", http.StatusOK)
}

// handleList serves the keys of all objects that have metadata.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.send404(w, r)
		return
	}
	s.sendJSON(w, r, s.store.Keys())
}

// handleTimeseries serves rows in the half-open window (t0, t1] across all
// configured sources. startts/endts are accepted as aliases.
func (s *Server) handleTimeseries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.send404(w, r)
		return
	}
	qs := r.URL.Query()
	t0, err0 := parseWindowBound(qs, "t0", "startts")
	t1, err1 := parseWindowBound(qs, "t1", "endts")
	if err0 != nil || err1 != nil {
		s.send404(w, r)
		return
	}
	rows, err := s.ts.Range(r.Context(), t0, t1)
	if err != nil {
		s.logger.Error().Err(err).Msg("Timeseries query failed")
		s.send404(w, r)
		return
	}
	s.sendJSON(w, r, rows)
}

func parseWindowBound(qs url.Values, name, alias string) (float64, error) {
	value := qs.Get(name)
	if value == "" {
		value = qs.Get(alias)
	}
	return strconv.ParseFloat(value, 64)
}

// handleInfo serves each timeseries source's properties document.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.send404(w, r)
		return
	}
	props, err := s.ts.Info(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Timeseries info query failed")
		s.send404(w, r)
		return
	}
	s.sendJSON(w, r, props)
}

// handleTrust acknowledges that the browser accepted the self-signed cert.
func (s *Server) handleTrust(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.send404(w, r)
		return
	}
	msg := "Congratulations, you have successfully trusted the server's self-signed certificate! You may now close this tab."
	s.sendMime(w, r, []byte(msg), "text/plain", http.StatusOK)
}

// handlePublish accepts metadata as a JSON POST body or raw data as a PUT
// body and enqueues the corresponding update.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ReadOnly {
		s.send404(w, r)
		return
	}
	key := s.objectKey(r, r.URL.Query())
	switch r.Method {
	case http.MethodPost:
		metadata, ok := s.decodeMetadata(r)
		if !ok {
			s.send404(w, r)
			return
		}
		s.logger.Debug().Str("key", key).Msg("publish")
		s.coord.Update(key, metadata, nil)
		s.sendSuccess(w, r)
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil || len(data) == 0 {
			s.send404(w, r)
			return
		}
		s.coord.Update(key, nil, data)
		s.sendSuccess(w, r)
	default:
		s.send404(w, r)
	}
}

// handleDelete removes a key. Deleting an unknown key is accepted and still
// broadcasts the delete notification.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ReadOnly || r.Method != http.MethodPost {
		s.send404(w, r)
		return
	}
	s.coord.Update(s.objectKey(r, r.URL.Query()), nil, nil)
	s.sendSuccess(w, r)
}

// handleControl broadcasts an arbitrary control document to all subscribers.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ReadOnly || r.Method != http.MethodPost {
		s.send404(w, r)
		return
	}
	metadata, ok := s.decodeMetadata(r)
	if !ok {
		s.send404(w, r)
		return
	}
	s.coord.Control(metadata)
	s.sendSuccess(w, r)
}

// handleQuery initiates a broadcast query and blocks until every subscriber
// known at initiation has replied or the deadline passes. The body is the
// JSON array of replies collected so far, possibly fewer than expected.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ReadOnly || r.Method != http.MethodPost {
		s.send404(w, r)
		return
	}
	q := s.coord.StartQuery()
	s.sendJSON(w, r, q.Wait())
}

// handleState accepts a subscriber's reply to an outstanding broadcast query.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ReadOnly || r.Method != http.MethodPost {
		s.send404(w, r)
		return
	}
	var payload any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.send404(w, r)
		return
	}
	s.coord.HandleState(r.RemoteAddr, payload)
	s.sendSuccess(w, r)
}

// handleNotFound serves every path no other route claims.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.send404(w, r)
}

func (s *Server) decodeMetadata(r *http.Request) (object.Metadata, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, false
	}
	var metadata object.Metadata
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, false
	}
	return metadata, true
}
