package secrets

import (
	"sync"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lnurld/lnurld/lnauth"
)

// MemoryStore is an in-memory Store implementation. Secrets do not survive a
// restart; it is intended for development setups and tests.
type MemoryStore struct {
	mtx     sync.Mutex
	secrets map[string]*Secret
	clock   clock.Clock
}

// A compile time check to ensure MemoryStore implements the Store interface.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory secret store.
func NewMemoryStore(clock clock.Clock) *MemoryStore {
	return &MemoryStore{
		secrets: make(map[string]*Secret),
		clock:   clock,
	}
}

// Create mints a new secret and stores it unused.
//
// NOTE: Part of the Store interface.
func (m *MemoryStore) Create(tag string,
	params map[string]string) (*Secret, error) {

	token, err := lnauth.GenerateSecret()
	if err != nil {
		return nil, err
	}

	secret := &Secret{
		Token:     token,
		Tag:       tag,
		Params:    copyParams(params),
		CreatedAt: m.clock.Now(),
	}

	m.mtx.Lock()
	m.secrets[token] = secret
	m.mtx.Unlock()

	log.Debugf("Created %v secret %v", tag, token)

	return copySecret(secret), nil
}

// Get returns a snapshot of the secret for the given token.
//
// NOTE: Part of the Store interface.
func (m *MemoryStore) Get(token string) (*Secret, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	secret, ok := m.secrets[token]
	if !ok {
		return nil, ErrSecretNotFound
	}
	return copySecret(secret), nil
}

// Claim marks the secret used, succeeding at most once per token.
//
// NOTE: Part of the Store interface.
func (m *MemoryStore) Claim(token string) (bool, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	secret, ok := m.secrets[token]
	if !ok {
		return false, ErrSecretNotFound
	}
	if secret.Used() {
		return false, nil
	}

	secret.UsedAt = m.clock.Now()

	log.Debugf("Claimed %v secret %v", secret.Tag, token)

	return true, nil
}

func copyParams(params map[string]string) map[string]string {
	cp := make(map[string]string, len(params))
	for key, value := range params {
		cp[key] = value
	}
	return cp
}

func copySecret(secret *Secret) *Secret {
	cp := *secret
	cp.Params = copyParams(secret.Params)
	return &cp
}
