package api

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// compressionThreshold is the smallest body size worth gzipping.
const compressionThreshold = 1024

func (s *Server) sendMime(w http.ResponseWriter, r *http.Request, body []byte, mimetype string, code int) {
	w.Header().Set("Content-Type", mimetype)
	if len(body) > compressionThreshold && strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		if compressed := compress(body); compressed != nil {
			body = compressed
			w.Header().Set("Content-Encoding", "gzip")
		}
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	if len(body) > 0 {
		w.Write(body)
	}
}

// compress returns the gzipped body only when that is strictly smaller.
func compress(body []byte) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil
	}
	if err := zw.Close(); err != nil {
		return nil
	}
	if buf.Len() < len(body) {
		return buf.Bytes()
	}
	return nil
}

func (s *Server) sendJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
		s.send404(w, r)
		return
	}
	s.sendMime(w, r, body, "application/json", http.StatusOK)
}

func (s *Server) sendSuccess(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, r, map[string]bool{"success": true})
}

// send404 is the uniform error response: unknown keys, unsupported paths,
// unparseable bodies and mutations against a read-only instance all report
// the same way for wire compatibility with existing clients.
func (s *Server) send404(w http.ResponseWriter, r *http.Request) {
	s.sendMime(w, r, []byte("Not found"), "text/plain", http.StatusNotFound)
}
