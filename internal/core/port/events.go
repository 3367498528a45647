package port

import (
	"context"

	"github.com/creativedesigns/retail-iam/internal/core/domain"
)

// EventPublisher publishes account lifecycle events to the message bus.
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error
	PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error
	PublishRoleChanged(ctx context.Context, event domain.RoleChangedEvent) error
	PublishSecretChanged(ctx context.Context, event domain.SecretChangedEvent) error
	PublishAccountStatusChanged(ctx context.Context, event domain.AccountStatusChangedEvent) error
}
