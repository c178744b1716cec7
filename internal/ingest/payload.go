// Package ingest turns raw sensor payloads into stored readings. A payload is
// validated, clamped to the sensor's physical range, completed with a
// computed AQI and a timestamp when the node did not send them, written to
// storage and then to the latest-reading cache.
package ingest

import (
	"bytes"
	"encoding/json"
	"time"

	"airwatch/internal/types"
)

// Payload is the JSON a node publishes.
type Payload struct {
	NodeID    string     `json:"node_id" validate:"required,max=64,nodeid"`
	PM1       float64    `json:"pm1_0" validate:"gte=0"`
	PM25      *float64   `json:"pm2_5" validate:"required,gte=0"`
	PM10      float64    `json:"pm10" validate:"gte=0"`
	AQI       *int       `json:"aqi,omitempty" validate:"omitempty,gte=0,lte=500"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Decode parses a message body holding either one payload object or an array
// of them.
func Decode(body []byte) ([]Payload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidJSON, "empty payload", nil)
	}

	if trimmed[0] == '[' {
		var batch []Payload
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidJSON, "payload is not a valid reading array", err)
		}
		if len(batch) == 0 {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidJSON, "payload array is empty", nil)
		}
		return batch, nil
	}

	var single Payload
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidJSON, "payload is not a valid reading", err)
	}
	return []Payload{single}, nil
}
