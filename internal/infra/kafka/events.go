package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creativedesigns/retail-iam/internal/core/domain"
	"github.com/creativedesigns/retail-iam/internal/core/port"
	"github.com/creativedesigns/retail-iam/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Username  string           `json:"username,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, username string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		Username:  username,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAccountRegistered publishes iam.account.registered events.
func (p *EventPublisher) PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error {
	payload := struct {
		AccountID    int       `json:"account_id"`
		Username     string    `json:"username"`
		Role         string    `json:"role"`
		RegisteredAt time.Time `json:"registered_at"`
	}{
		AccountID:    event.AccountID,
		Username:     event.Username,
		Role:         string(event.Role),
		RegisteredAt: event.RegisteredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "iam.account.registered", event.Username, event.RegisteredAt, payload)
}

// PublishAccountLocked publishes iam.account.locked events.
func (p *EventPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	payload := struct {
		AccountID      int       `json:"account_id"`
		Username       string    `json:"username"`
		FailedAttempts int       `json:"failed_attempts"`
		LockedAt       time.Time `json:"locked_at"`
	}{
		AccountID:      event.AccountID,
		Username:       event.Username,
		FailedAttempts: event.FailedAttempts,
		LockedAt:       event.LockedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "iam.account.locked", event.Username, event.LockedAt, payload)
}

// PublishRoleChanged publishes iam.account.role_changed events.
func (p *EventPublisher) PublishRoleChanged(ctx context.Context, event domain.RoleChangedEvent) error {
	payload := struct {
		AccountID    int       `json:"account_id"`
		Username     string    `json:"username"`
		PreviousRole string    `json:"previous_role"`
		NewRole      string    `json:"new_role"`
		ChangedAt    time.Time `json:"changed_at"`
	}{
		AccountID:    event.AccountID,
		Username:     event.Username,
		PreviousRole: string(event.PreviousRole),
		NewRole:      string(event.NewRole),
		ChangedAt:    event.ChangedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "iam.account.role_changed", event.Username, event.ChangedAt, payload)
}

// PublishSecretChanged publishes iam.account.secret_changed events. The
// payload never includes credential material.
func (p *EventPublisher) PublishSecretChanged(ctx context.Context, event domain.SecretChangedEvent) error {
	payload := struct {
		AccountID int       `json:"account_id"`
		Username  string    `json:"username"`
		ChangedAt time.Time `json:"changed_at"`
	}{
		AccountID: event.AccountID,
		Username:  event.Username,
		ChangedAt: event.ChangedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "iam.account.secret_changed", event.Username, event.ChangedAt, payload)
}

// PublishAccountStatusChanged publishes iam.account.status_changed events.
func (p *EventPublisher) PublishAccountStatusChanged(ctx context.Context, event domain.AccountStatusChangedEvent) error {
	payload := struct {
		AccountID int       `json:"account_id"`
		Username  string    `json:"username"`
		Active    bool      `json:"active"`
		ChangedAt time.Time `json:"changed_at"`
	}{
		AccountID: event.AccountID,
		Username:  event.Username,
		Active:    event.Active,
		ChangedAt: event.ChangedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "iam.account.status_changed", event.Username, event.ChangedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
