package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creativedesigns/retail-iam/internal/core/domain"
	"github.com/creativedesigns/retail-iam/internal/core/port"
	"github.com/creativedesigns/retail-iam/internal/repository"
)

var (
	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = errors.New("username already registered")
	// ErrNotFound indicates no account matches the given username.
	ErrNotFound = repository.ErrNotFound
)

// BootstrapAccount describes the administrator seeded into an empty registry
// so the system is never unreachable.
type BootstrapAccount struct {
	FullName string
	Username string
	Secret   string
}

// RegisterInput carries the fields for creating or replacing an account.
type RegisterInput struct {
	FullName string
	Username string
	Secret   string
	Role     string
}

// RegistryService is the identity and uniqueness authority for accounts. It
// assigns identifiers, dispatches login, and owns CRUD on the collection. All
// state lives behind the injected repository; the service serializes every
// mutation so the lockout and rollback invariants hold under concurrent use.
type RegistryService struct {
	accounts port.AccountRepository
	comparer domain.CredentialComparer
	hasher   domain.SecretHasher
	events   port.EventPublisher
	logger   *zap.Logger

	mu sync.RWMutex
}

// NewRegistryService constructs a registry backed by the given repository and
// secret scheme. The event publisher may be nil.
func NewRegistryService(accounts port.AccountRepository, comparer domain.CredentialComparer, hasher domain.SecretHasher, events port.EventPublisher, logger *zap.Logger) *RegistryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryService{
		accounts: accounts,
		comparer: comparer,
		hasher:   hasher,
		events:   events,
		logger:   logger,
	}
}

// recoverFault converts an unexpected panic into a generic failure result so
// every public operation is total from the caller's perspective.
func (s *RegistryService) recoverFault(op string, err *error) {
	if r := recover(); r != nil {
		s.logger.Error("registry operation fault", zap.String("operation", op), zap.Any("panic", r))
		*err = fmt.Errorf("%s: internal fault: %v", op, r)
	}
}

// Seed creates the bootstrap administrator when the registry is empty.
func (s *RegistryService) Seed(ctx context.Context, bootstrap BootstrapAccount) (err error) {
	defer s.recoverFault("seed", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.accounts.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	hash, err := s.hasher.Hash(bootstrap.Secret)
	if err != nil {
		return fmt.Errorf("hash bootstrap secret: %w", err)
	}

	admin := domain.NewAccount(bootstrap.FullName, bootstrap.Username, hash, domain.RoleAdministrator)
	admin.ID = 1
	if err := s.accounts.Add(ctx, admin); err != nil {
		return fmt.Errorf("seed bootstrap administrator: %w", err)
	}

	s.logger.Info("bootstrap administrator seeded", zap.String("username", admin.Username))
	return nil
}

// Register creates a new account. The username must be unique after case
// normalization and the secret must meet the minimum length; this is a
// deliberately coarser pre-check than the full password rule, applied again
// at the registry boundary. On acceptance the account receives the next free
// identifier and is appended in registration order.
func (s *RegistryService) Register(ctx context.Context, input RegisterInput) (account *domain.Account, err error) {
	defer s.recoverFault("register", &err)

	username := domain.NormalizeUsername(input.Username)
	if len([]rune(input.Secret)) < domain.MinSecretLength {
		return nil, &domain.ValidationError{Field: "password", Reason: fmt.Sprintf("password must be at least %d characters", domain.MinSecretLength)}
	}

	role := domain.DefaultRole
	if input.Role != "" {
		parsed, verr := domain.ParseRole(input.Role)
		if verr != nil {
			return nil, verr
		}
		role = parsed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.accounts.FindByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup username: %w", err)
	}

	hash, err := s.hasher.Hash(input.Secret)
	if err != nil {
		return nil, fmt.Errorf("hash secret: %w", err)
	}

	acct := domain.NewAccount(input.FullName, username, hash, role)
	acct.ID, err = s.nextID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Add(ctx, acct); err != nil {
		return nil, fmt.Errorf("store account: %w", err)
	}

	s.publishRegistered(ctx, acct)
	s.logger.Info("account registered",
		zap.Int("account_id", acct.ID),
		zap.String("username", acct.Username),
		zap.String("role", string(acct.Role)),
	)

	return acct.Clone(), nil
}

// nextID returns max existing id + 1, or 1 for an empty registry. Callers
// must hold the write lock.
func (s *RegistryService) nextID(ctx context.Context) (int, error) {
	all, err := s.accounts.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load accounts: %w", err)
	}
	next := 1
	for _, acct := range all {
		if acct.ID >= next {
			next = acct.ID + 1
		}
	}
	return next, nil
}

// Authenticate dispatches a login attempt to the matching account. All
// authentication is routed through the account's own state machine, so
// lockout and inactivity apply on this path too. An unknown username reports
// plain invalid credentials; nothing reveals which credential failed.
func (s *RegistryService) Authenticate(ctx context.Context, username, password string) (account *domain.Account, outcome domain.AuthOutcome, err error) {
	defer s.recoverFault("authenticate", &err)

	normalized := domain.NormalizeUsername(username)

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.accounts.FindByUsername(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.AuthInvalidCredentials, nil
		}
		return nil, domain.AuthInvalidCredentials, fmt.Errorf("lookup account: %w", err)
	}

	wasActive := acct.IsActive
	outcome, err = acct.Authenticate(normalized, password, s.comparer)
	if err != nil {
		return nil, domain.AuthInvalidCredentials, fmt.Errorf("verify credentials: %w", err)
	}

	if err := s.accounts.Update(ctx, normalized, acct); err != nil {
		return nil, domain.AuthInvalidCredentials, fmt.Errorf("persist login state: %w", err)
	}

	if wasActive && !acct.IsActive {
		s.publishLocked(ctx, acct)
		s.logger.Warn("account locked after repeated failures",
			zap.String("username", acct.Username),
			zap.Int("failed_attempts", acct.FailedAttempts),
		)
	}

	if outcome != domain.AuthSuccess {
		return nil, outcome, nil
	}
	return acct.Clone(), outcome, nil
}

// FindByUsername returns the account with the given username, or ErrNotFound.
func (s *RegistryService) FindByUsername(ctx context.Context, username string) (account *domain.Account, err error) {
	defer s.recoverFault("find", &err)

	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, err := s.accounts.FindByUsername(ctx, domain.NormalizeUsername(username))
	if err != nil {
		return nil, err
	}
	return acct.Clone(), nil
}

// ListAll returns every account in registration order.
func (s *RegistryService) ListAll(ctx context.Context) (accounts []*domain.Account, err error) {
	defer s.recoverFault("list", &err)

	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.accounts.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Account, 0, len(all))
	for _, acct := range all {
		out = append(out, acct.Clone())
	}
	return out, nil
}

// Replace overwrites the account identified by oldUsername in place, keeping
// its identifier and registration position. An empty secret keeps the stored
// credential; a new username must not collide with another account.
func (s *RegistryService) Replace(ctx context.Context, oldUsername string, input RegisterInput) (account *domain.Account, err error) {
	defer s.recoverFault("replace", &err)

	oldNormalized := domain.NormalizeUsername(oldUsername)
	newNormalized := domain.NormalizeUsername(input.Username)

	role := domain.DefaultRole
	if input.Role != "" {
		parsed, verr := domain.ParseRole(input.Role)
		if verr != nil {
			return nil, verr
		}
		role = parsed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.accounts.FindByUsername(ctx, oldNormalized)
	if err != nil {
		return nil, err
	}

	if newNormalized != oldNormalized {
		if _, err := s.accounts.FindByUsername(ctx, newNormalized); err == nil {
			return nil, ErrUsernameTaken
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("lookup username: %w", err)
		}
	}

	hash := existing.SecretHash
	if input.Secret != "" {
		if len([]rune(input.Secret)) < domain.MinSecretLength {
			return nil, &domain.ValidationError{Field: "password", Reason: fmt.Sprintf("password must be at least %d characters", domain.MinSecretLength)}
		}
		hash, err = s.hasher.Hash(input.Secret)
		if err != nil {
			return nil, fmt.Errorf("hash secret: %w", err)
		}
	}

	replacement := domain.NewAccount(input.FullName, newNormalized, hash, role)
	replacement.ID = existing.ID
	replacement.CreatedAt = existing.CreatedAt

	if err := s.accounts.Update(ctx, oldNormalized, replacement); err != nil {
		return nil, fmt.Errorf("replace account: %w", err)
	}

	s.logger.Info("account replaced",
		zap.String("old_username", oldNormalized),
		zap.String("username", replacement.Username),
	)
	return replacement.Clone(), nil
}

// Remove deletes the account identified by username.
func (s *RegistryService) Remove(ctx context.Context, username string) (err error) {
	defer s.recoverFault("remove", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := domain.NormalizeUsername(username)
	if err := s.accounts.Remove(ctx, normalized); err != nil {
		return err
	}

	s.logger.Info("account removed", zap.String("username", normalized))
	return nil
}

// ChangeSecret rotates the credential of the named account through the
// account's own transactional change rules.
func (s *RegistryService) ChangeSecret(ctx context.Context, username, current, proposed, confirm string) (err error) {
	defer s.recoverFault("change_secret", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := domain.NormalizeUsername(username)
	acct, err := s.accounts.FindByUsername(ctx, normalized)
	if err != nil {
		return err
	}

	if err := acct.ChangeSecret(current, proposed, confirm, s.comparer, s.hasher); err != nil {
		return err
	}

	if err := s.accounts.Update(ctx, normalized, acct); err != nil {
		return fmt.Errorf("persist secret change: %w", err)
	}

	s.publishSecretChanged(ctx, acct)
	s.logger.Info("account secret changed", zap.String("username", normalized))
	return nil
}

// SetRole assigns a new role to the named account, reporting the prior and
// new role on success.
func (s *RegistryService) SetRole(ctx context.Context, username, rawRole string) (previous, updated domain.Role, err error) {
	defer s.recoverFault("set_role", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := domain.NormalizeUsername(username)
	acct, err := s.accounts.FindByUsername(ctx, normalized)
	if err != nil {
		return "", "", err
	}

	previous, updated, verr := acct.SetRole(rawRole)
	if verr != nil {
		return "", "", verr
	}

	if err := s.accounts.Update(ctx, normalized, acct); err != nil {
		return "", "", fmt.Errorf("persist role change: %w", err)
	}

	s.publishRoleChanged(ctx, acct, previous, updated)
	s.logger.Info("account role changed",
		zap.String("username", normalized),
		zap.String("previous_role", string(previous)),
		zap.String("new_role", string(updated)),
	)
	return previous, updated, nil
}

// SetActive activates or deactivates the named account. Activation clears
// any lockout.
func (s *RegistryService) SetActive(ctx context.Context, username string, active bool) (err error) {
	defer s.recoverFault("set_active", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := domain.NormalizeUsername(username)
	acct, err := s.accounts.FindByUsername(ctx, normalized)
	if err != nil {
		return err
	}

	if active {
		acct.Activate()
	} else {
		acct.Deactivate()
	}

	if err := s.accounts.Update(ctx, normalized, acct); err != nil {
		return fmt.Errorf("persist status change: %w", err)
	}

	s.publishStatusChanged(ctx, acct)
	s.logger.Info("account status changed",
		zap.String("username", normalized),
		zap.Bool("active", active),
	)
	return nil
}

// GrantPermission adds a custom permission to the named account. Returns
// whether the grant changed anything.
func (s *RegistryService) GrantPermission(ctx context.Context, username, permission string) (changed bool, err error) {
	defer s.recoverFault("grant_permission", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := domain.NormalizeUsername(username)
	acct, err := s.accounts.FindByUsername(ctx, normalized)
	if err != nil {
		return false, err
	}

	changed = acct.GrantPermission(permission)
	if !changed {
		return false, nil
	}
	if err := s.accounts.Update(ctx, normalized, acct); err != nil {
		return false, fmt.Errorf("persist permission grant: %w", err)
	}
	return true, nil
}

// RevokePermission removes a custom permission from the named account.
func (s *RegistryService) RevokePermission(ctx context.Context, username, permission string) (changed bool, err error) {
	defer s.recoverFault("revoke_permission", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := domain.NormalizeUsername(username)
	acct, err := s.accounts.FindByUsername(ctx, normalized)
	if err != nil {
		return false, err
	}

	changed = acct.RevokePermission(permission)
	if !changed {
		return false, nil
	}
	if err := s.accounts.Update(ctx, normalized, acct); err != nil {
		return false, fmt.Errorf("persist permission revocation: %w", err)
	}
	return true, nil
}

// HasPermission resolves the named capability for the given account.
func (s *RegistryService) HasPermission(ctx context.Context, username, permission string) (allowed bool, err error) {
	defer s.recoverFault("has_permission", &err)

	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, err := s.accounts.FindByUsername(ctx, domain.NormalizeUsername(username))
	if err != nil {
		return false, err
	}
	return acct.HasPermission(permission), nil
}

func (s *RegistryService) publishRegistered(ctx context.Context, acct *domain.Account) {
	if s.events == nil {
		return
	}
	event := domain.AccountRegisteredEvent{
		EventID:      uuid.NewString(),
		AccountID:    acct.ID,
		Username:     acct.Username,
		Role:         acct.Role,
		RegisteredAt: acct.CreatedAt,
	}
	if err := s.events.PublishAccountRegistered(ctx, event); err != nil {
		s.logger.Warn("publish account registered event", zap.Error(err))
	}
}

func (s *RegistryService) publishLocked(ctx context.Context, acct *domain.Account) {
	if s.events == nil {
		return
	}
	event := domain.AccountLockedEvent{
		EventID:        uuid.NewString(),
		AccountID:      acct.ID,
		Username:       acct.Username,
		FailedAttempts: acct.FailedAttempts,
		LockedAt:       time.Now().UTC(),
	}
	if err := s.events.PublishAccountLocked(ctx, event); err != nil {
		s.logger.Warn("publish account locked event", zap.Error(err))
	}
}

func (s *RegistryService) publishRoleChanged(ctx context.Context, acct *domain.Account, previous, updated domain.Role) {
	if s.events == nil {
		return
	}
	event := domain.RoleChangedEvent{
		EventID:      uuid.NewString(),
		AccountID:    acct.ID,
		Username:     acct.Username,
		PreviousRole: previous,
		NewRole:      updated,
		ChangedAt:    time.Now().UTC(),
	}
	if err := s.events.PublishRoleChanged(ctx, event); err != nil {
		s.logger.Warn("publish role changed event", zap.Error(err))
	}
}

func (s *RegistryService) publishSecretChanged(ctx context.Context, acct *domain.Account) {
	if s.events == nil {
		return
	}
	event := domain.SecretChangedEvent{
		EventID:   uuid.NewString(),
		AccountID: acct.ID,
		Username:  acct.Username,
		ChangedAt: time.Now().UTC(),
	}
	if err := s.events.PublishSecretChanged(ctx, event); err != nil {
		s.logger.Warn("publish secret changed event", zap.Error(err))
	}
}

func (s *RegistryService) publishStatusChanged(ctx context.Context, acct *domain.Account) {
	if s.events == nil {
		return
	}
	event := domain.AccountStatusChangedEvent{
		EventID:   uuid.NewString(),
		AccountID: acct.ID,
		Username:  acct.Username,
		Active:    acct.IsActive,
		ChangedAt: time.Now().UTC(),
	}
	if err := s.events.PublishAccountStatusChanged(ctx, event); err != nil {
		s.logger.Warn("publish status changed event", zap.Error(err))
	}
}
