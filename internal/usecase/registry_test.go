package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/creativedesigns/retail-iam/internal/core/domain"
	"github.com/creativedesigns/retail-iam/internal/repository"
	"github.com/creativedesigns/retail-iam/internal/repository/memory"
)

type plainComparer struct{}

func (plainComparer) Compare(candidate, stored string) (bool, error) {
	return stored == "hash("+candidate+")", nil
}

type plainHasher struct{}

func (plainHasher) Hash(secret string) (string, error) {
	return "hash(" + secret + ")", nil
}

type capturingPublisher struct {
	registered    []domain.AccountRegisteredEvent
	locked        []domain.AccountLockedEvent
	roleChanged   []domain.RoleChangedEvent
	secretChanged []domain.SecretChangedEvent
	statusChanged []domain.AccountStatusChangedEvent
}

func (p *capturingPublisher) PublishAccountRegistered(_ context.Context, e domain.AccountRegisteredEvent) error {
	p.registered = append(p.registered, e)
	return nil
}

func (p *capturingPublisher) PublishAccountLocked(_ context.Context, e domain.AccountLockedEvent) error {
	p.locked = append(p.locked, e)
	return nil
}

func (p *capturingPublisher) PublishRoleChanged(_ context.Context, e domain.RoleChangedEvent) error {
	p.roleChanged = append(p.roleChanged, e)
	return nil
}

func (p *capturingPublisher) PublishSecretChanged(_ context.Context, e domain.SecretChangedEvent) error {
	p.secretChanged = append(p.secretChanged, e)
	return nil
}

func (p *capturingPublisher) PublishAccountStatusChanged(_ context.Context, e domain.AccountStatusChangedEvent) error {
	p.statusChanged = append(p.statusChanged, e)
	return nil
}

func newTestRegistry(t *testing.T) (*RegistryService, *capturingPublisher) {
	t.Helper()
	events := &capturingPublisher{}
	svc := NewRegistryService(memory.NewAccountRepository(), plainComparer{}, plainHasher{}, events, zap.NewNop())
	return svc, events
}

func seedAdmin(t *testing.T, svc *RegistryService) {
	t.Helper()
	err := svc.Seed(context.Background(), BootstrapAccount{
		FullName: "System Administrator",
		Username: "admin",
		Secret:   "admin123",
	})
	if err != nil {
		t.Fatalf("Seed returned error: %v", err)
	}
}

func TestSeedCreatesBootstrapAdministrator(t *testing.T) {
	svc, _ := newTestRegistry(t)
	seedAdmin(t, svc)

	admin, err := svc.FindByUsername(context.Background(), "admin")
	if err != nil {
		t.Fatalf("FindByUsername returned error: %v", err)
	}
	if admin.ID != 1 {
		t.Fatalf("expected bootstrap id 1, got %d", admin.ID)
	}
	if admin.Role != domain.RoleAdministrator {
		t.Fatalf("expected administrator role, got %s", admin.Role)
	}
	if !admin.HasPermission("anything_at_all") {
		t.Fatal("bootstrap administrator must hold every permission")
	}
}

func TestSeedIsIdempotentOnNonEmptyRegistry(t *testing.T) {
	svc, _ := newTestRegistry(t)
	seedAdmin(t, svc)
	seedAdmin(t, svc)

	all, err := svc.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll returned error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected a single account after repeated seed, got %d", len(all))
	}
}

func TestRegisterAssignsSequentialIdentifiers(t *testing.T) {
	svc, events := newTestRegistry(t)
	seedAdmin(t, svc)

	jdoe, err := svc.Register(context.Background(), RegisterInput{
		FullName: "Jane Doe",
		Username: "jdoe",
		Secret:   "abc12",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if jdoe.ID != 2 {
		t.Fatalf("expected id 2, got %d", jdoe.ID)
	}
	if jdoe.Role != domain.RoleSalesperson {
		t.Fatalf("expected default salesperson role, got %s", jdoe.Role)
	}

	second, err := svc.Register(context.Background(), RegisterInput{
		Username: "asmith",
		Secret:   "xyz78",
		Role:     "supervisor",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if second.ID != 3 {
		t.Fatalf("expected id 3, got %d", second.ID)
	}

	if len(events.registered) != 2 {
		t.Fatalf("expected 2 registration events, got %d", len(events.registered))
	}
}

func TestRegisterRejectsDuplicateUsernameCaseInsensitive(t *testing.T) {
	svc, _ := newTestRegistry(t)
	seedAdmin(t, svc)

	if _, err := svc.Register(context.Background(), RegisterInput{Username: "jdoe", Secret: "abc12"}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	_, err := svc.Register(context.Background(), RegisterInput{Username: "  JDoe ", Secret: "abc12"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}

	all, err := svc.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll returned error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("rejected registration must not change the registry size, got %d", len(all))
	}
}

func TestRegisterCoarseSecretCheck(t *testing.T) {
	svc, _ := newTestRegistry(t)

	// Below the minimum length the registry refuses outright.
	_, err := svc.Register(context.Background(), RegisterInput{Username: "jdoe", Secret: "ab1"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// The registry check is length-only; composition is not enforced here.
	if _, err := svc.Register(context.Background(), RegisterInput{Username: "jdoe", Secret: "abcde"}); err != nil {
		t.Fatalf("expected length-only pre-check to accept, got %v", err)
	}
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	svc, _ := newTestRegistry(t)

	_, err := svc.Register(context.Background(), RegisterInput{Username: "jdoe", Secret: "abc12", Role: "wizard"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAuthenticateSuccessPersistsLoginState(t *testing.T) {
	svc, _ := newTestRegistry(t)
	seedAdmin(t, svc)

	account, outcome, err := svc.Authenticate(context.Background(), "admin", "admin123")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if outcome != domain.AuthSuccess {
		t.Fatalf("expected success, got %s", outcome)
	}
	if account.LastLoginAt == nil {
		t.Fatal("expected login timestamp on returned account")
	}

	stored, err := svc.FindByUsername(context.Background(), "admin")
	if err != nil {
		t.Fatalf("FindByUsername returned error: %v", err)
	}
	if stored.LastLoginAt == nil {
		t.Fatal("expected login timestamp to be persisted")
	}

	// Success must not consume any state that blocks an immediate second login.
	_, outcome, err = svc.Authenticate(context.Background(), "admin", "admin123")
	if err != nil {
		t.Fatalf("second Authenticate returned error: %v", err)
	}
	if outcome != domain.AuthSuccess {
		t.Fatalf("expected back-to-back success, got %s", outcome)
	}
}

func TestAuthenticateUnknownUsername(t *testing.T) {
	svc, _ := newTestRegistry(t)

	account, outcome, err := svc.Authenticate(context.Background(), "ghost", "abc12")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if account != nil {
		t.Fatal("expected no account for unknown username")
	}
	if outcome != domain.AuthInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %s", outcome)
	}
}

func TestAuthenticateLockoutIsPersistedAndPublished(t *testing.T) {
	svc, events := newTestRegistry(t)
	seedAdmin(t, svc)

	for i := 0; i < domain.MaxLoginAttempts; i++ {
		_, outcome, err := svc.Authenticate(context.Background(), "admin", "wrong1")
		if err != nil {
			t.Fatalf("attempt %d returned error: %v", i+1, err)
		}
		if outcome != domain.AuthInvalidCredentials {
			t.Fatalf("attempt %d: expected invalid credentials, got %s", i+1, outcome)
		}
	}

	stored, err := svc.FindByUsername(context.Background(), "admin")
	if err != nil {
		t.Fatalf("FindByUsername returned error: %v", err)
	}
	if stored.IsActive {
		t.Fatal("expected account deactivated after lockout")
	}
	if !stored.Locked() {
		t.Fatal("expected account locked after lockout")
	}

	if len(events.locked) != 1 {
		t.Fatalf("expected exactly one lock event, got %d", len(events.locked))
	}
	if events.locked[0].FailedAttempts != domain.MaxLoginAttempts {
		t.Fatalf("lock event should carry the attempt count, got %d", events.locked[0].FailedAttempts)
	}

	// Correct credentials no longer help.
	_, outcome, err := svc.Authenticate(context.Background(), "admin", "admin123")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if outcome != domain.AuthLocked {
		t.Fatalf("expected locked outcome, got %s", outcome)
	}
}

func TestActivateRestoresLockedAccount(t *testing.T) {
	svc, events := newTestRegistry(t)
	seedAdmin(t, svc)

	for i := 0; i < domain.MaxLoginAttempts; i++ {
		svc.Authenticate(context.Background(), "admin", "wrong1")
	}

	if err := svc.SetActive(context.Background(), "admin", true); err != nil {
		t.Fatalf("SetActive returned error: %v", err)
	}

	_, outcome, err := svc.Authenticate(context.Background(), "admin", "admin123")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if outcome != domain.AuthSuccess {
		t.Fatalf("expected success after reactivation, got %s", outcome)
	}

	if len(events.statusChanged) != 1 {
		t.Fatalf("expected one status change event, got %d", len(events.statusChanged))
	}
}

func TestChangeSecret(t *testing.T) {
	svc, events := newTestRegistry(t)
	seedAdmin(t, svc)

	err := svc.ChangeSecret(context.Background(), "admin", "admin123", "newpw9", "newpw9")
	if err != nil {
		t.Fatalf("ChangeSecret returned error: %v", err)
	}

	_, outcome, err := svc.Authenticate(context.Background(), "admin", "newpw9")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if outcome != domain.AuthSuccess {
		t.Fatalf("expected success with rotated secret, got %s", outcome)
	}

	if len(events.secretChanged) != 1 {
		t.Fatalf("expected one secret change event, got %d", len(events.secretChanged))
	}
}

func TestChangeSecretWrongCurrentLeavesStateUntouched(t *testing.T) {
	svc, _ := newTestRegistry(t)
	seedAdmin(t, svc)

	err := svc.ChangeSecret(context.Background(), "admin", "wrong1", "newpw9", "newpw9")
	if err == nil {
		t.Fatal("expected error for wrong current secret")
	}

	_, outcome, err := svc.Authenticate(context.Background(), "admin", "admin123")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if outcome != domain.AuthSuccess {
		t.Fatalf("old secret must remain valid, got %s", outcome)
	}
}

func TestSetRole(t *testing.T) {
	svc, events := newTestRegistry(t)
	seedAdmin(t, svc)
	svc.Register(context.Background(), RegisterInput{Username: "jdoe", Secret: "abc12"})

	previous, updated, err := svc.SetRole(context.Background(), "jdoe", "supervisor")
	if err != nil {
		t.Fatalf("SetRole returned error: %v", err)
	}
	if previous != domain.RoleSalesperson || updated != domain.RoleSupervisor {
		t.Fatalf("unexpected transition %s -> %s", previous, updated)
	}

	stored, _ := svc.FindByUsername(context.Background(), "jdoe")
	if stored.Role != domain.RoleSupervisor {
		t.Fatalf("expected persisted supervisor role, got %s", stored.Role)
	}

	if len(events.roleChanged) != 1 {
		t.Fatalf("expected one role change event, got %d", len(events.roleChanged))
	}
}

func TestSetRoleInvalidKeepsStoredRole(t *testing.T) {
	svc, _ := newTestRegistry(t)
	seedAdmin(t, svc)
	svc.Register(context.Background(), RegisterInput{Username: "jdoe", Secret: "abc12"})

	if _, _, err := svc.SetRole(context.Background(), "jdoe", "wizard"); err == nil {
		t.Fatal("expected error for unknown role")
	}

	stored, _ := svc.FindByUsername(context.Background(), "jdoe")
	if stored.Role != domain.RoleSalesperson {
		t.Fatalf("role must be unchanged after invalid input, got %s", stored.Role)
	}
}

func TestReplaceKeepsIdentifierAndPosition(t *testing.T) {
	svc, _ := newTestRegistry(t)
	seedAdmin(t, svc)
	svc.Register(context.Background(), RegisterInput{FullName: "Jane Doe", Username: "jdoe", Secret: "abc12"})
	svc.Register(context.Background(), RegisterInput{Username: "asmith", Secret: "xyz78"})

	replaced, err := svc.Replace(context.Background(), "jdoe", RegisterInput{
		FullName: "Jane Smith",
		Username: "jsmith",
		Role:     "supervisor",
	})
	if err != nil {
		t.Fatalf("Replace returned error: %v", err)
	}
	if replaced.ID != 2 {
		t.Fatalf("replacement must keep id 2, got %d", replaced.ID)
	}

	// Empty secret keeps the stored credential.
	_, outcome, err := svc.Authenticate(context.Background(), "jsmith", "abc12")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if outcome != domain.AuthSuccess {
		t.Fatalf("expected old credential to survive replace, got %s", outcome)
	}

	all, _ := svc.ListAll(context.Background())
	if len(all) != 3 {
		t.Fatalf("expected 3 accounts, got %d", len(all))
	}
	if all[1].Username != "jsmith" {
		t.Fatalf("replacement must keep registration position, got %q at index 1", all[1].Username)
	}
}

func TestReplaceRejectsCollidingUsername(t *testing.T) {
	svc, _ := newTestRegistry(t)
	seedAdmin(t, svc)
	svc.Register(context.Background(), RegisterInput{Username: "jdoe", Secret: "abc12"})

	_, err := svc.Replace(context.Background(), "jdoe", RegisterInput{Username: "admin"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	svc, _ := newTestRegistry(t)
	seedAdmin(t, svc)
	svc.Register(context.Background(), RegisterInput{Username: "jdoe", Secret: "abc12"})

	if err := svc.Remove(context.Background(), "jdoe"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}

	if _, err := svc.FindByUsername(context.Background(), "jdoe"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after removal, got %v", err)
	}

	if err := svc.Remove(context.Background(), "jdoe"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for repeated removal, got %v", err)
	}
}

func TestRemovedIdentifierIsReusedForNextRegistration(t *testing.T) {
	svc, _ := newTestRegistry(t)
	seedAdmin(t, svc)
	svc.Register(context.Background(), RegisterInput{Username: "jdoe", Secret: "abc12"})
	svc.Remove(context.Background(), "jdoe")

	next, err := svc.Register(context.Background(), RegisterInput{Username: "asmith", Secret: "xyz78"})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if next.ID != 2 {
		t.Fatalf("expected max+1 assignment to reuse id 2, got %d", next.ID)
	}
}

func TestPermissionLifecycle(t *testing.T) {
	svc, _ := newTestRegistry(t)
	seedAdmin(t, svc)
	svc.Register(context.Background(), RegisterInput{Username: "jdoe", Secret: "abc12"})

	allowed, err := svc.HasPermission(context.Background(), "jdoe", domain.PermissionViewReports)
	if err != nil {
		t.Fatalf("HasPermission returned error: %v", err)
	}
	if allowed {
		t.Fatal("salesperson must not hold view_reports by default")
	}

	changed, err := svc.GrantPermission(context.Background(), "jdoe", domain.PermissionViewReports)
	if err != nil {
		t.Fatalf("GrantPermission returned error: %v", err)
	}
	if !changed {
		t.Fatal("expected grant to report a change")
	}

	allowed, _ = svc.HasPermission(context.Background(), "jdoe", domain.PermissionViewReports)
	if !allowed {
		t.Fatal("expected granted permission to persist")
	}

	changed, err = svc.RevokePermission(context.Background(), "jdoe", domain.PermissionViewReports)
	if err != nil {
		t.Fatalf("RevokePermission returned error: %v", err)
	}
	if !changed {
		t.Fatal("expected revocation to report a change")
	}

	allowed, _ = svc.HasPermission(context.Background(), "jdoe", domain.PermissionViewReports)
	if allowed {
		t.Fatal("expected revoked permission to stop resolving")
	}
}

func TestReturnedAccountsDoNotAliasStoredState(t *testing.T) {
	svc, _ := newTestRegistry(t)
	seedAdmin(t, svc)

	account, _ := svc.FindByUsername(context.Background(), "admin")
	account.FullName = "Mallory"
	account.GrantPermission("tampered")

	stored, _ := svc.FindByUsername(context.Background(), "admin")
	if stored.FullName == "Mallory" {
		t.Fatal("mutating a returned account must not affect stored state")
	}
	if _, ok := stored.CustomPermissions["tampered"]; ok {
		t.Fatal("mutating returned permissions must not affect stored state")
	}
}
