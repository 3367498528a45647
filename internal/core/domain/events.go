package domain

import "time"

// AccountRegisteredEvent represents the payload for iam.account.registered messages.
type AccountRegisteredEvent struct {
	EventID      string
	AccountID    int
	Username     string
	Role         Role
	RegisteredAt time.Time
}

// AccountLockedEvent represents the payload for iam.account.locked messages.
type AccountLockedEvent struct {
	EventID        string
	AccountID      int
	Username       string
	FailedAttempts int
	LockedAt       time.Time
}

// RoleChangedEvent represents the payload for iam.account.role_changed messages.
type RoleChangedEvent struct {
	EventID      string
	AccountID    int
	Username     string
	PreviousRole Role
	NewRole      Role
	ChangedAt    time.Time
}

// SecretChangedEvent represents the payload for iam.account.secret_changed messages.
type SecretChangedEvent struct {
	EventID   string
	AccountID int
	Username  string
	ChangedAt time.Time
}

// AccountStatusChangedEvent represents the payload for iam.account.status_changed
// messages, covering manual activation and deactivation.
type AccountStatusChangedEvent struct {
	EventID   string
	AccountID int
	Username  string
	Active    bool
	ChangedAt time.Time
}
