package domain

import (
	"context"
	"time"
)

// ReplySnippetLimit bounds the reply text kept in interaction records.
const ReplySnippetLimit = 200

// Interaction is one handled query, as persisted by the interaction log.
type Interaction struct {
	SessionID  string    `json:"session_id"`
	Text       string    `json:"text"`
	Intent     Intent    `json:"intent"`
	Confidence float64   `json:"confidence"`
	LatencyMS  int64     `json:"latency_ms"`
	Entities   Entities  `json:"entities"`
	Reply      string    `json:"reply"`
	Timestamp  time.Time `json:"ts"`
}

// Snippet returns the reply truncated to ReplySnippetLimit runes.
func (i Interaction) Snippet() string {
	r := []rune(i.Reply)
	if len(r) <= ReplySnippetLimit {
		return i.Reply
	}
	return string(r[:ReplySnippetLimit])
}

// InteractionLogger persists handled queries. Failures must never change a
// reply that has already been computed.
type InteractionLogger interface {
	LogInteraction(ctx context.Context, rec Interaction) error
}
