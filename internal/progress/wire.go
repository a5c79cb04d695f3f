package progress

import (
	"encoding/json"

	"github.com/clipforge/highlighter/internal/domain"
)

// encodeEvent serializes a ProgressEvent for the pub/sub payload.
func encodeEvent(ev domain.ProgressEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeEvent parses a pub/sub payload back into a ProgressEvent, used by
// subscribers (the gateway, C7) on the receive side.
func DecodeEvent(payload []byte) (domain.ProgressEvent, error) {
	var ev domain.ProgressEvent
	err := json.Unmarshal(payload, &ev)
	return ev, err
}
