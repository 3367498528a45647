package domain

// CredentialComparer checks a candidate secret against its stored encoding.
// Implementations decide the storage scheme (salted hash in production), so
// the account's control flow never learns how secrets are persisted.
type CredentialComparer interface {
	Compare(candidate, stored string) (bool, error)
}

// SecretHasher produces the stored encoding for a raw secret.
type SecretHasher interface {
	Hash(secret string) (string, error)
}
