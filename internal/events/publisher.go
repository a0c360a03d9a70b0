package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/evolvere-edu/evolvere-api/internal/config"
)

// WatermillPublisher adapts a watermill message.Publisher to EventPublisher.
type WatermillPublisher struct {
	publisher   message.Publisher
	topicPrefix string
	logger      *slog.Logger
}

func NewWatermillPublisher(publisher message.Publisher, topicPrefix string, logger *slog.Logger) *WatermillPublisher {
	return &WatermillPublisher{
		publisher:   publisher,
		topicPrefix: topicPrefix,
		logger:      logger,
	}
}

// NewPublisher returns a Kafka publisher when brokers are configured and an
// in-process GoChannel otherwise.
func NewPublisher(cfg config.KafkaConfig, logger *slog.Logger) (*WatermillPublisher, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	if len(cfg.Brokers) == 0 {
		logger.Info("Kafka brokers not configured, using in-process event bus")
		bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, wmLogger)
		return NewWatermillPublisher(bus, cfg.TopicPrefix, logger), nil
	}

	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.Brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}
	logger.Info("Kafka event publisher ready", "brokers", cfg.Brokers)
	return NewWatermillPublisher(pub, cfg.TopicPrefix, logger), nil
}

func (p *WatermillPublisher) Publish(ctx context.Context, topic string, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.Type, err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("type", event.Type)
	msg.Metadata.Set("source", event.Source)
	msg.Metadata.Set("version", event.Version)
	msg.SetContext(ctx)

	fullTopic := p.topicPrefix + topic
	if err := p.publisher.Publish(fullTopic, msg); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", event.Type, fullTopic, err)
	}

	p.logger.Debug("Event published", "topic", fullTopic, "type", event.Type, "event_id", event.ID)
	return nil
}

func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}

// Subscriber exposes the underlying bus when it supports subscriptions, so
// in-process consumers can listen without Kafka.
func (p *WatermillPublisher) Subscriber() (message.Subscriber, bool) {
	sub, ok := p.publisher.(message.Subscriber)
	return sub, ok
}

// Decode parses a message published by WatermillPublisher.
func Decode(msg *message.Message) (*Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	return &event, nil
}
