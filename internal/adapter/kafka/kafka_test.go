package kafka

import (
	"strings"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-assistant/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	rec := domain.Interaction{
		SessionID:  "sess-1",
		Text:       "any alerts for Dallas, TX?",
		Intent:     domain.IntentAlerts,
		Confidence: 0.8761,
		LatencyMS:  42,
		Entities:   domain.Entities{Location: "Dallas, TX"},
		Reply:      "No active alerts for Dallas, TX.",
		Timestamp:  now,
	}

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	assert.Equal(t, []byte("sess-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"intent":"get_alerts"`)
	assert.Contains(t, string(msg.Value), `"datetime":null`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "intent", msg.Headers[0].Key)
	assert.Equal(t, []byte("get_alerts"), msg.Headers[0].Value)
	assert.Equal(t, []byte("0.876"), msg.Headers[1].Value)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)

	back, err := DeserializeMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, rec.Entities, back.Entities)
	assert.True(t, now.Equal(back.Timestamp))
}

func TestSerializeToMessage_TruncatesReply(t *testing.T) {
	rec := domain.Interaction{SessionID: "s", Reply: strings.Repeat("é", domain.ReplySnippetLimit+1)}

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	back, err := DeserializeMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, domain.ReplySnippetLimit, len([]rune(back.Reply)))
}

func TestDeserializeMessage_Invalid(t *testing.T) {
	_, err := DeserializeMessage(kafkago.Message{Value: []byte("{")})
	assert.Error(t, err)
}
