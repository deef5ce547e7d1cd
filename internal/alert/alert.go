// Package alert publishes recorded emergency events to Kafka.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/evansbry000/SmartPlugApp/internal/record"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Alert is the JSON body of one emergency message.
type Alert struct {
	EventID     string `json:"eventId"`
	DeviceID    string `json:"deviceId"`
	Type        string `json:"type"`
	Message     string `json:"message"`
	Temperature any    `json:"temperature,omitempty"`
	Timestamp   string `json:"timestamp"`
	PublishedAt string `json:"publishedAt"`
}

// Publisher sends emergency events to a Kafka topic, keyed by device id.
// Implements engine.AlertPublisher.
type Publisher struct {
	writer messageWriter
	topic  string
	now    func() time.Time
	logger *slog.Logger
}

// NewPublisher creates a synchronous publisher writing to topic on brokers.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return newPublisher(w, topic, logger)
}

func newPublisher(w messageWriter, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		writer: w,
		topic:  topic,
		now:    time.Now,
		logger: logger.With(slog.String("component", "kafka-alerts")),
	}
}

// PublishEmergency writes one alert message.
func (p *Publisher) PublishEmergency(ctx context.Context, eventID string, ev record.EmergencyEvent) error {
	now := p.now()
	body, err := json.Marshal(Alert{
		EventID:     eventID,
		DeviceID:    ev.DeviceID,
		Type:        ev.Type,
		Message:     ev.Message,
		Temperature: ev.Temperature,
		Timestamp:   ev.Timestamp.Resolve(now).UTC().Format(time.RFC3339Nano),
		PublishedAt: now.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("encode alert %s: %w", eventID, err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.DeviceID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish alert %s to %s: %w", eventID, p.topic, err)
	}

	p.logger.Debug("alert published", "event_id", eventID, "device_id", ev.DeviceID)
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
