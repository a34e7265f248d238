package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livercare-risk-server/internal/domain"
)

type recordingWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func sampleAssessment() *domain.RiskAssessment {
	return &domain.RiskAssessment{
		Probability: 72.4,
		RiskLevel:   domain.RiskHigh,
		RiskLabel:   "High Risk",
		Source:      domain.SourceFallback,
		AssessedAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestNewAssessmentEvent(t *testing.T) {
	input := domain.PatientInput{Age: 61, BMI: 27}

	event := NewAssessmentEvent(42, input, sampleAssessment(), true)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, EventAssessmentCompleted, event.EventType)
	assert.Equal(t, int64(42), event.UserID)
	assert.Equal(t, 72.4, event.Probability)
	assert.Equal(t, domain.RiskHigh, event.RiskLevel)
	assert.Equal(t, domain.SourceFallback, event.Source)
	assert.True(t, event.Saved)
	assert.Equal(t, 61.0, event.Input.Age)
}

func TestKafkaPublisher_PublishAssessment(t *testing.T) {
	tests := []struct {
		name        string
		userID      int64
		expectedKey func(AssessmentEvent) string
	}{
		{name: "keyed by user", userID: 7, expectedKey: func(AssessmentEvent) string { return "7" }},
		{name: "anonymous keyed by event", userID: 0, expectedKey: func(e AssessmentEvent) string { return e.EventID }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &recordingWriter{}
			p := newKafkaPublisher(w, "liver.assessments", quietLogger())
			event := NewAssessmentEvent(tt.userID, domain.PatientInput{Age: 45}, sampleAssessment(), false)

			require.NoError(t, p.PublishAssessment(context.Background(), event))

			require.Len(t, w.messages, 1)
			msg := w.messages[0]
			assert.Equal(t, tt.expectedKey(event), string(msg.Key))

			var decoded AssessmentEvent
			require.NoError(t, json.Unmarshal(msg.Value, &decoded))
			assert.Equal(t, event.EventID, decoded.EventID)
			assert.Equal(t, 72.4, decoded.Probability)

			headers := map[string]string{}
			for _, h := range msg.Headers {
				headers[h.Key] = string(h.Value)
			}
			assert.Equal(t, EventAssessmentCompleted, headers["event_type"])
		})
	}
}

func TestKafkaPublisher_WriteFailure(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker unavailable")}
	p := newKafkaPublisher(w, "liver.assessments", quietLogger())

	err := p.PublishAssessment(context.Background(), NewAssessmentEvent(1, domain.PatientInput{}, sampleAssessment(), false))

	assert.ErrorContains(t, err, "broker unavailable")
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewPublisher(t *testing.T) {
	logger := quietLogger()

	p, err := NewPublisher(domain.EventsConfig{Enabled: false}, logger)
	require.NoError(t, err)
	assert.IsType(t, NoopPublisher{}, p)
	assert.NoError(t, p.PublishAssessment(context.Background(), AssessmentEvent{}))

	_, err = NewPublisher(domain.EventsConfig{Enabled: true, Topic: "t"}, logger)
	assert.Error(t, err)

	_, err = NewPublisher(domain.EventsConfig{Enabled: true, Brokers: []string{"localhost:9092"}}, logger)
	assert.Error(t, err)

	p, err = NewPublisher(domain.EventsConfig{Enabled: true, Brokers: []string{"localhost:9092"}, Topic: "liver.assessments"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &KafkaPublisher{}, p)
	assert.NoError(t, p.Close())
}
