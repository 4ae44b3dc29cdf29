package domain

import "time"

// TurnSnapshot is an immutable record of one resolved conversational exchange.
type TurnSnapshot struct {
	Intent     Intent    `json:"intent"`
	Confidence float64   `json:"confidence"`
	Entities   Entities  `json:"entities"`
	Timestamp  time.Time `json:"timestamp"`
	Reply      string    `json:"reply,omitempty"`
}

// PendingState is the per-session dialogue state of an incomplete request.
// The zero value is Idle.
type PendingState struct {
	// Intent is the parked request; empty means Idle.
	Intent Intent `json:"intent,omitempty"`
	// When is the time hint captured with the parked request.
	When TimeRef `json:"when,omitempty"`
}

// Idle reports whether no request is waiting for a location.
func (p PendingState) Idle() bool {
	return p.Intent == ""
}

// AwaitingLocationFor parks intent with its time hint until a location arrives.
func AwaitingLocationFor(intent Intent, when TimeRef) PendingState {
	return PendingState{Intent: intent, When: when}
}
