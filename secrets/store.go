package secrets

import (
	"errors"
	"time"
)

var (
	// ErrSecretNotFound is returned when a secret token is not present in
	// the store. Callers surface this identically to an already-used
	// secret so that the endpoint does not leak which tokens ever existed.
	ErrSecretNotFound = errors.New("secret not found")
)

// Secret is a single-use opaque token binding a subprotocol and its validated
// parameters to one resolvable action. The Tag and Params of a secret are
// immutable after creation; UsedAt transitions from zero to a timestamp
// exactly once, after which the secret is permanently inert.
type Secret struct {
	// Token is the hex-encoded random value that is both the capability
	// and the lookup key (the k1 handed to wallets).
	Token string

	// Tag is the subprotocol this secret was minted for.
	Tag string

	// Params holds the validated, subprotocol-specific creation
	// parameters.
	Params map[string]string

	// CreatedAt is the time the secret was minted.
	CreatedAt time.Time

	// UsedAt is the time the secret was claimed by an action execution,
	// or the zero time while the secret is still spendable.
	UsedAt time.Time
}

// Used reports whether the secret has already been claimed.
func (s *Secret) Used() bool {
	return !s.UsedAt.IsZero()
}

// Store is the persistence contract required by the dispatch engine. All
// methods must be safe for concurrent use.
type Store interface {
	// Create mints a new secret bound to the given tag and parameters and
	// persists it unused.
	Create(tag string, params map[string]string) (*Secret, error)

	// Get returns the secret for the given token, or ErrSecretNotFound.
	// The returned secret is a snapshot; mutating it has no effect on the
	// store.
	Get(token string) (*Secret, error)

	// Claim atomically marks the secret used, behaving as a
	// compare-and-swap on UsedAt. It returns true at most once per token:
	// exactly one of any number of concurrent claims succeeds. Claiming
	// an unknown token returns ErrSecretNotFound.
	Claim(token string) (bool, error)
}
