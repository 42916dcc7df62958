package secrets

import (
	"encoding/json"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lnurld/lnurld/lnauth"
	"go.etcd.io/bbolt"
)

var (
	// secretBucketName is the name of the bucket all secrets are stored
	// under, keyed by their token.
	secretBucketName = []byte("lnurl-secrets")
)

// secretRecord is the serialized form of a Secret, minus the token which
// doubles as the bucket key.
type secretRecord struct {
	Tag       string            `json:"tag"`
	Params    map[string]string `json:"params"`
	CreatedAt time.Time         `json:"created_at"`
	UsedAt    *time.Time        `json:"used_at,omitempty"`
}

// BoltStore is a Store implementation backed by a bbolt database. Claim runs
// as a single read-modify-write inside one Update transaction, which bbolt
// serializes, giving the required compare-and-swap semantics.
type BoltStore struct {
	db    *bbolt.DB
	clock clock.Clock
}

// A compile time check to ensure BoltStore implements the Store interface.
var _ Store = (*BoltStore)(nil)

// NewBoltStore opens (and creates, if needed) the secret database at the
// given path.
func NewBoltStore(dbPath string, clock clock.Clock) (*BoltStore, error) {
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, err
	}

	// If the store's bucket doesn't exist, create it.
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(secretBucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{
		db:    db,
		clock: clock,
	}, nil
}

// Close closes the underlying database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

// Create mints a new secret and persists it unused.
//
// NOTE: Part of the Store interface.
func (b *BoltStore) Create(tag string,
	params map[string]string) (*Secret, error) {

	token, err := lnauth.GenerateSecret()
	if err != nil {
		return nil, err
	}

	record := &secretRecord{
		Tag:       tag,
		Params:    copyParams(params),
		CreatedAt: b.clock.Now(),
	}
	value, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(secretBucketName).Put([]byte(token), value)
	})
	if err != nil {
		return nil, err
	}

	log.Debugf("Created %v secret %v", tag, token)

	return record.secret(token), nil
}

// Get returns a snapshot of the secret for the given token.
//
// NOTE: Part of the Store interface.
func (b *BoltStore) Get(token string) (*Secret, error) {
	var record secretRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(secretBucketName).Get([]byte(token))
		if value == nil {
			return ErrSecretNotFound
		}
		return json.Unmarshal(value, &record)
	})
	if err != nil {
		return nil, err
	}

	return record.secret(token), nil
}

// Claim marks the secret used, succeeding at most once per token.
//
// NOTE: Part of the Store interface.
func (b *BoltStore) Claim(token string) (bool, error) {
	var claimed bool
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(secretBucketName)
		value := bucket.Get([]byte(token))
		if value == nil {
			return ErrSecretNotFound
		}

		var record secretRecord
		if err := json.Unmarshal(value, &record); err != nil {
			return err
		}
		if record.UsedAt != nil {
			return nil
		}

		usedAt := b.clock.Now()
		record.UsedAt = &usedAt

		updated, err := json.Marshal(&record)
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte(token), updated); err != nil {
			return err
		}

		claimed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if claimed {
		log.Debugf("Claimed secret %v", token)
	}

	return claimed, nil
}

// secret converts the stored record back into the exported Secret form.
func (r *secretRecord) secret(token string) *Secret {
	secret := &Secret{
		Token:     token,
		Tag:       r.Tag,
		Params:    copyParams(r.Params),
		CreatedAt: r.CreatedAt,
	}
	if r.UsedAt != nil {
		secret.UsedAt = *r.UsedAt
	}
	return secret
}
