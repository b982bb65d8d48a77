package amqp

import (
	"encoding/json"
	"time"

	"spendscan/internal/core"
)

// RawMessageEnvelope is the wire form of one raw message published by a
// notification forwarder. Field names match the core.RawMessage record.
type RawMessageEnvelope struct {
	ID              int64  `json:"id"`
	Body            string `json:"body"`
	Sender          string `json:"sender"`
	TimestampMillis int64  `json:"timestamp_ms"`
	Hint            string `json:"direction_hint,omitempty"`
}

// ToRawMessage converts the envelope into the domain record. Unknown
// hints collapse to HintUnknown.
func (m *RawMessageEnvelope) ToRawMessage() core.RawMessage {
	hint := core.DirectionHint(m.Hint)
	switch hint {
	case core.HintInbound, core.HintOutbound:
	default:
		hint = core.HintUnknown
	}
	return core.RawMessage{
		ID:              m.ID,
		Body:            m.Body,
		Sender:          m.Sender,
		TimestampMillis: m.TimestampMillis,
		Hint:            hint,
	}
}

func (m *RawMessageEnvelope) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RawMessageEnvelopeFromJSON(data []byte) (*RawMessageEnvelope, error) {
	var msg RawMessageEnvelope
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// RunCompletedMessage announces a finished analysis run so downstream
// consumers know fresh summaries are available.
type RunCompletedMessage struct {
	RunAt          time.Time `json:"run_at"`
	NewlyProcessed int       `json:"newly_processed"`
	Transactions   int       `json:"transactions"`
	TotalSpending  string    `json:"total_spending"`
}

func (m *RunCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RunCompletedMessageFromJSON(data []byte) (*RunCompletedMessage, error) {
	var msg RunCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
