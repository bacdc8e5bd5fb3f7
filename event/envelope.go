package event

import (
	"encoding/json"
	"fmt"
)

// ParseEnvelope parses a NATS message carrying a BaseMessage-wrapped payload.
// It unwraps the envelope's payload field into T; when the data is not an
// envelope (raw JSON published by an external producer), it falls back to
// decoding the whole message as T.
func ParseEnvelope[T any](data []byte) (*T, error) {
	var rawMsg struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &rawMsg); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	body := rawMsg.Payload
	if len(body) == 0 {
		body = data
	}

	var payload T
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &payload, nil
}
