// Package kafka publishes interaction records to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/weather-assistant/internal/domain"
)

// Writer produces interaction records to a Kafka topic.
// It implements interaction.Sink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the interaction topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// WriteBatch serializes and publishes the records in a single WriteMessages
// call. Records are keyed by session id so a conversation stays ordered
// within one partition.
func (w *Writer) WriteBatch(ctx context.Context, recs []domain.Interaction) error {
	if len(recs) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(recs))
	for i := range recs {
		msg, err := serializeToMessage(recs[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write %s: %w", w.writer.Topic, err)
	}
	w.logger.Debug("interactions published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Interaction into a Kafka message.
func serializeToMessage(rec domain.Interaction) (kafkago.Message, error) {
	rec.Reply = rec.Snippet()
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize interaction: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.SessionID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "intent", Value: []byte(rec.Intent)},
			{Key: "confidence", Value: []byte(strconv.FormatFloat(rec.Confidence, 'f', 3, 64))},
			{Key: "ts", Value: []byte(rec.Timestamp.Format(time.RFC3339))},
		},
		Time: rec.Timestamp,
	}, nil
}

// DeserializeMessage decodes a message produced by Writer.
func DeserializeMessage(msg kafkago.Message) (domain.Interaction, error) {
	var rec domain.Interaction
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		return domain.Interaction{}, fmt.Errorf("deserialize interaction: %w", err)
	}
	return rec, nil
}
