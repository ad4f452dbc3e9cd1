package gateway

import (
	"encoding/json"
	"fmt"
)

// Frame types exchanged with the platform edge. Inbound frames carry events;
// outbound frames carry actions. All frames are JSON with a type
// discriminator, parsed in two steps via the envelope.
const (
	// Edge -> bot.
	FrameEvent = "event"
	FramePong  = "pong"

	// Bot -> edge.
	FrameAction = "action"
	FramePing   = "ping"
)

// Envelope holds the frame type and the raw JSON for deferred parsing into a
// concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the full raw bytes and extracts only the "type"
// field so the payload can be decoded later into the appropriate struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("gateway: unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("gateway: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// EventFrame wraps an inbound event.
type EventFrame struct {
	Type  string `json:"type"`
	Event Event  `json:"event"`
}

// ActionFrame is one outbound platform action. Args are action-specific.
type ActionFrame struct {
	Type   string            `json:"type"`
	Action string            `json:"action"`
	ChatID string            `json:"chat_id"`
	Args   map[string]string `json:"args,omitempty"`
}

// ParseFrame decodes raw bytes into an envelope and, for event frames, the
// concrete event.
func ParseFrame(data []byte) (string, *Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, err
	}
	if env.Type != FrameEvent {
		return env.Type, nil, nil
	}
	var frame EventFrame
	if err := json.Unmarshal(env.Raw, &frame); err != nil {
		return env.Type, nil, fmt.Errorf("gateway: unmarshal event frame: %w", err)
	}
	return env.Type, &frame.Event, nil
}

// NewActionFrame builds the wire bytes for an outbound action.
func NewActionFrame(action, chatID string, args map[string]string) ([]byte, error) {
	data, err := json.Marshal(ActionFrame{
		Type:   FrameAction,
		Action: action,
		ChatID: chatID,
		Args:   args,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal action %s: %w", action, err)
	}
	return data, nil
}
