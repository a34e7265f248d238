// Package events publishes domain events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/livercare-risk-server/internal/domain"
)

// EventAssessmentCompleted is the type of every assessment event.
const EventAssessmentCompleted = "assessment.completed"

// AssessmentEvent describes one completed risk assessment.
type AssessmentEvent struct {
	EventID     string                  `json:"eventId"`
	EventType   string                  `json:"eventType"`
	UserID      int64                   `json:"userId,omitempty"`
	Input       domain.PatientInput     `json:"input"`
	Probability float64                 `json:"probability"`
	RiskLevel   domain.RiskLevel        `json:"riskLevel"`
	Source      domain.PredictionSource `json:"source"`
	Saved       bool                    `json:"saved"`
	OccurredAt  time.Time               `json:"occurredAt"`
}

// NewAssessmentEvent builds an event for assessment. userID is 0 for anonymous callers.
func NewAssessmentEvent(userID int64, input domain.PatientInput, assessment *domain.RiskAssessment, saved bool) AssessmentEvent {
	return AssessmentEvent{
		EventID:     uuid.New().String(),
		EventType:   EventAssessmentCompleted,
		UserID:      userID,
		Input:       input,
		Probability: assessment.Probability,
		RiskLevel:   assessment.RiskLevel,
		Source:      assessment.Source,
		Saved:       saved,
		OccurredAt:  assessment.AssessedAt,
	}
}

// Publisher delivers assessment events.
type Publisher interface {
	PublishAssessment(ctx context.Context, event AssessmentEvent) error
	Close() error
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

// PublishAssessment does nothing.
func (NoopPublisher) PublishAssessment(context.Context, AssessmentEvent) error { return nil }

// Close does nothing.
func (NoopPublisher) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to a single topic.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *logrus.Logger
}

// NewKafkaPublisher creates a publisher for config.Topic on config.Brokers.
func NewKafkaPublisher(config domain.EventsConfig, logger *logrus.Logger) (*KafkaPublisher, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafkago.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafkago.RequireAll,
	}
	return newKafkaPublisher(w, config.Topic, logger), nil
}

func newKafkaPublisher(w messageWriter, topic string, logger *logrus.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, logger: logger}
}

// PublishAssessment writes event keyed by user ID, or by event ID for anonymous users.
func (p *KafkaPublisher) PublishAssessment(ctx context.Context, event AssessmentEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding assessment event: %w", err)
	}

	key := event.EventID
	if event.UserID != 0 {
		key = strconv.FormatInt(event.UserID, 10)
	}

	msg := kafkago.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "content-type", Value: []byte("application/json")},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithFields(logrus.Fields{
			"topic":    p.topic,
			"event_id": event.EventID,
			"error":    err,
		}).Warn("Failed to publish assessment event")
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewPublisher returns a KafkaPublisher when events are enabled and a NoopPublisher otherwise.
func NewPublisher(config domain.EventsConfig, logger *logrus.Logger) (Publisher, error) {
	if !config.Enabled {
		return NoopPublisher{}, nil
	}
	p, err := NewKafkaPublisher(config, logger)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"brokers": config.Brokers,
		"topic":   config.Topic,
	}).Info("Publishing assessment events to Kafka")
	return p, nil
}
