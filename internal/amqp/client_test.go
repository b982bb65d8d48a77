package amqp

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"spendscan/internal/core"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
		{40, 30 * time.Second}, // shift overflow also capped
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"connection closed", errors.New("connection closed"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"handler error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRawMessageEnvelopeJSON(t *testing.T) {
	envelope := &RawMessageEnvelope{
		ID:              42,
		Body:            "Rs. 100 debited",
		Sender:          "HDFCBK",
		TimestampMillis: 1709287200000,
		Hint:            "outbound",
	}

	data, err := envelope.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	parsed, err := RawMessageEnvelopeFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if parsed.ID != 42 || parsed.Body != envelope.Body || parsed.Sender != envelope.Sender {
		t.Fatalf("round trip lost fields: %+v", parsed)
	}

	raw := parsed.ToRawMessage()
	if raw.Hint != core.HintOutbound {
		t.Fatalf("hint = %q, want outbound", raw.Hint)
	}
}

func TestRawMessageEnvelopeUnknownHint(t *testing.T) {
	for _, hint := range []string{"", "sideways", "INBOUND"} {
		envelope := &RawMessageEnvelope{ID: 1, Hint: hint}
		if got := envelope.ToRawMessage().Hint; got != core.HintUnknown {
			t.Fatalf("hint %q mapped to %q, want unknown", hint, got)
		}
	}
}

func TestRawMessageEnvelopeInvalidJSON(t *testing.T) {
	if _, err := RawMessageEnvelopeFromJSON([]byte(`{"id": "not_a_number"}`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestRunCompletedMessageJSON(t *testing.T) {
	msg := &RunCompletedMessage{
		RunAt:          time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
		NewlyProcessed: 5,
		Transactions:   4,
		TotalSpending:  "180",
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	parsed, err := RunCompletedMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if !parsed.RunAt.Equal(msg.RunAt) || parsed.TotalSpending != "180" {
		t.Fatalf("round trip lost fields: %+v", parsed)
	}
}
