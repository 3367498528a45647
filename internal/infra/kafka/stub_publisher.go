package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/creativedesigns/retail-iam/internal/core/domain"
	"github.com/creativedesigns/retail-iam/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments and the in-memory storage driver.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, username string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		zap.String("event_type", eventType),
		zap.String("username", username),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishAccountRegistered logs iam.account.registered events.
func (p *StubPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	payload := map[string]any{
		"account_id":    event.AccountID,
		"username":      event.Username,
		"role":          string(event.Role),
		"registered_at": event.RegisteredAt,
	}
	p.logEvent("iam.account.registered", event.Username, event.RegisteredAt, payload)
	return nil
}

// PublishAccountLocked logs iam.account.locked events.
func (p *StubPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	payload := map[string]any{
		"account_id":      event.AccountID,
		"username":        event.Username,
		"failed_attempts": event.FailedAttempts,
		"locked_at":       event.LockedAt,
	}
	p.logEvent("iam.account.locked", event.Username, event.LockedAt, payload)
	return nil
}

// PublishRoleChanged logs iam.account.role_changed events.
func (p *StubPublisher) PublishRoleChanged(_ context.Context, event domain.RoleChangedEvent) error {
	payload := map[string]any{
		"account_id":    event.AccountID,
		"username":      event.Username,
		"previous_role": string(event.PreviousRole),
		"new_role":      string(event.NewRole),
		"changed_at":    event.ChangedAt,
	}
	p.logEvent("iam.account.role_changed", event.Username, event.ChangedAt, payload)
	return nil
}

// PublishSecretChanged logs iam.account.secret_changed events.
func (p *StubPublisher) PublishSecretChanged(_ context.Context, event domain.SecretChangedEvent) error {
	payload := map[string]any{
		"account_id": event.AccountID,
		"username":   event.Username,
		"changed_at": event.ChangedAt,
	}
	p.logEvent("iam.account.secret_changed", event.Username, event.ChangedAt, payload)
	return nil
}

// PublishAccountStatusChanged logs iam.account.status_changed events.
func (p *StubPublisher) PublishAccountStatusChanged(_ context.Context, event domain.AccountStatusChangedEvent) error {
	payload := map[string]any{
		"account_id": event.AccountID,
		"username":   event.Username,
		"active":     event.Active,
		"changed_at": event.ChangedAt,
	}
	p.logEvent("iam.account.status_changed", event.Username, event.ChangedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
