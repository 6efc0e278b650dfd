package coordinator

import (
	"encoding/json"

	"github.com/cvlviz/cvld/pkg/object"
)

// Frame operations.
const (
	OpID      = "id"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpControl = "control"
	OpQuery   = "query"
)

// Frame is the notification envelope posted to subscribers. Key is the object
// key for update/delete frames, the subscriber sequence number for id frames
// and null otherwise. Meta carries metadata only for control frames.
type Frame struct {
	Key       any             `json:"key"`
	Operation string          `json:"operation"`
	Meta      object.Metadata `json:"meta"`
}

// Encode renders the frame as its JSON wire form. Framing into SSE lines is
// the subscriber's concern.
func (f Frame) Encode() (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
