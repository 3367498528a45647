package domain

import (
	"sort"
	"strings"
	"time"
)

// MaxLoginAttempts is the number of consecutive credential mismatches that
// forces an account into the locked state.
const MaxLoginAttempts = 3

// AuthOutcome is the result of an authentication attempt. It is always
// returned as a value, never as an error, so callers can branch on the
// specific reason.
type AuthOutcome int

const (
	AuthSuccess AuthOutcome = iota
	AuthInvalidCredentials
	AuthLocked
	AuthInactive
)

// String returns the wire-friendly name of the outcome.
func (o AuthOutcome) String() string {
	switch o {
	case AuthSuccess:
		return "success"
	case AuthInvalidCredentials:
		return "invalid_credentials"
	case AuthLocked:
		return "locked"
	case AuthInactive:
		return "inactive"
	}
	return "unknown"
}

// Account is the credential, role, and state record for one principal. It owns
// its own validation and lockout transitions; the registry owns identifier
// assignment and uniqueness.
type Account struct {
	// ID is assigned by the registry and immutable once set. Zero means the
	// account has not been registered yet.
	ID       int
	FullName string
	// Username is the case-normalized login handle. Immutable identity key
	// alongside ID.
	Username string
	// SecretHash is the stored encoding of the login credential. Comparison
	// and hashing go through CredentialComparer / SecretHasher so the storage
	// scheme can change without touching account control flow.
	SecretHash        string
	Role              Role
	IsActive          bool
	CreatedAt         time.Time
	LastLoginAt       *time.Time
	FailedAttempts    int
	CustomPermissions map[string]struct{}
}

// NewAccount constructs an account with the documented defaults: salesperson
// role when none is given, active, zero failed attempts. The username is
// normalized to lowercase; the secret must already be hashed.
func NewAccount(fullName, username, secretHash string, role Role) *Account {
	if role == "" {
		role = DefaultRole
	}
	return &Account{
		FullName:          strings.TrimSpace(fullName),
		Username:          NormalizeUsername(username),
		SecretHash:        secretHash,
		Role:              role,
		IsActive:          true,
		CreatedAt:         time.Now().UTC(),
		CustomPermissions: make(map[string]struct{}),
	}
}

// Clone returns a deep copy so registry reads never alias live state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	dup := *a
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		dup.LastLoginAt = &t
	}
	dup.CustomPermissions = make(map[string]struct{}, len(a.CustomPermissions))
	for name := range a.CustomPermissions {
		dup.CustomPermissions[name] = struct{}{}
	}
	return &dup
}

// ValidateName checks the display name against the field rules.
func (a *Account) ValidateName() *ValidationError {
	return ValidateFullName(a.FullName)
}

// ValidateUsername checks the login handle against the field rules.
func (a *Account) ValidateUsername() *ValidationError {
	return ValidateUsername(a.Username)
}

// ValidateRole checks that the role is a member of the closed enumeration.
func (a *Account) ValidateRole() *ValidationError {
	if !a.Role.IsValid() {
		_, err := ParseRole(string(a.Role))
		return err
	}
	return nil
}

// ValidateAll aggregates every failing field into an ordered list of reasons.
// The raw secret is supplied by the caller because only its hash is stored.
func (a *Account) ValidateAll(rawSecret string) []*ValidationError {
	var errs []*ValidationError
	if err := a.ValidateName(); err != nil {
		errs = append(errs, err)
	}
	if err := a.ValidateUsername(); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateSecret(rawSecret); err != nil {
		errs = append(errs, err)
	}
	if err := a.ValidateRole(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// Authenticate validates the supplied credentials against this account.
//
// Locked accounts refuse authentication without incrementing further;
// inactive accounts refuse without consuming an attempt. A credential mismatch
// increments the failure counter and deactivates the account in the same step
// once the threshold is reached, so no reader can observe an over-threshold
// counter on an active account. A full match resets the counter and stamps the
// login time. No other code path mutates FailedAttempts or LastLoginAt.
func (a *Account) Authenticate(username, secret string, cmp CredentialComparer) (AuthOutcome, error) {
	if a.Locked() {
		return AuthLocked, nil
	}
	if !a.IsActive {
		return AuthInactive, nil
	}

	if a.Username != NormalizeUsername(username) {
		a.recordFailedAttempt()
		return AuthInvalidCredentials, nil
	}

	ok, err := cmp.Compare(secret, a.SecretHash)
	if err != nil {
		return AuthInvalidCredentials, err
	}
	if !ok {
		a.recordFailedAttempt()
		return AuthInvalidCredentials, nil
	}

	a.FailedAttempts = 0
	now := time.Now().UTC()
	a.LastLoginAt = &now
	return AuthSuccess, nil
}

func (a *Account) recordFailedAttempt() {
	a.FailedAttempts++
	if a.FailedAttempts >= MaxLoginAttempts {
		a.IsActive = false
	}
}

// Locked reports whether the failure counter has reached the lockout
// threshold. Locked and manually deactivated accounts both have IsActive
// false; this distinguishes why.
func (a *Account) Locked() bool {
	return a.FailedAttempts >= MaxLoginAttempts
}

// ChangeSecret replaces the stored credential. The current secret must verify,
// the proposed value must match its confirmation, differ from the current
// secret, and satisfy the password rules. On any failure the stored secret is
// left exactly as it was.
func (a *Account) ChangeSecret(current, proposed, confirm string, cmp CredentialComparer, hasher SecretHasher) error {
	ok, err := cmp.Compare(current, a.SecretHash)
	if err != nil {
		return err
	}
	if !ok {
		return newValidationError("password", "current password is incorrect")
	}
	if proposed != confirm {
		return newValidationError("password", "new passwords do not match")
	}
	if proposed == current {
		return newValidationError("password", "new password must be different from the current password")
	}
	if verr := ValidateSecret(proposed); verr != nil {
		return verr
	}

	hash, err := hasher.Hash(proposed)
	if err != nil {
		return err
	}
	a.SecretHash = hash
	return nil
}

// SetRole applies the new role after validating it. Invalid input leaves the
// role at its previous value; success returns the prior and new role for
// auditing.
func (a *Account) SetRole(raw string) (previous, updated Role, verr *ValidationError) {
	previous = a.Role
	role, err := ParseRole(raw)
	if err != nil {
		return previous, previous, err
	}
	a.Role = role
	return previous, role, nil
}

// Activate enables the account and clears any lockout by resetting the
// failure counter.
func (a *Account) Activate() {
	a.IsActive = true
	a.FailedAttempts = 0
}

// Deactivate disables the account. The failure counter is left as-is so a
// manual deactivation stays distinguishable from a lockout.
func (a *Account) Deactivate() {
	a.IsActive = false
}

// HasPermission resolves the named capability against the account's role
// defaults and custom grants.
func (a *Account) HasPermission(name string) bool {
	return ResolvePermission(a.Role, a.CustomPermissions, name)
}

// GrantPermission adds a custom permission. Returns false when the account
// already held it.
func (a *Account) GrantPermission(name string) bool {
	if a.CustomPermissions == nil {
		a.CustomPermissions = make(map[string]struct{})
	}
	if _, ok := a.CustomPermissions[name]; ok {
		return false
	}
	a.CustomPermissions[name] = struct{}{}
	return true
}

// RevokePermission removes a custom permission. Returns false when the
// account did not hold it.
func (a *Account) RevokePermission(name string) bool {
	if _, ok := a.CustomPermissions[name]; !ok {
		return false
	}
	delete(a.CustomPermissions, name)
	return true
}

// PermissionList returns the custom grants in a stable order for
// serialization and API responses.
func (a *Account) PermissionList() []string {
	out := make([]string, 0, len(a.CustomPermissions))
	for name := range a.CustomPermissions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
