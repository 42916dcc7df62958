package secrets

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// newTestStores returns one instance of every Store implementation.
func newTestStores(t *testing.T) map[string]Store {
	t.Helper()

	testClock := clock.NewTestClock(testTime)

	boltStore, err := NewBoltStore(
		filepath.Join(t.TempDir(), "secrets.db"), testClock,
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, boltStore.Close())
	})

	return map[string]Store{
		"memory": NewMemoryStore(testClock),
		"bolt":   boltStore,
	}
}

// TestStoreRoundTrip asserts that created secrets are returned unchanged by
// Get and that unknown tokens report ErrSecretNotFound.
func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	for name, store := range newTestStores(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			params := map[string]string{
				"minWithdrawable": "1000",
				"maxWithdrawable": "5000",
			}
			secret, err := store.Create("withdrawRequest", params)
			require.NoError(t, err)
			require.NotEmpty(t, secret.Token)
			require.False(t, secret.Used())

			fetched, err := store.Get(secret.Token)
			require.NoError(t, err)
			require.Equal(t, secret, fetched)

			_, err = store.Get("deadbeef")
			require.ErrorIs(t, err, ErrSecretNotFound)
		})
	}
}

// TestStoreClaimOnce asserts that a secret can be claimed exactly once and
// that the claim is reflected in subsequent lookups.
func TestStoreClaimOnce(t *testing.T) {
	t.Parallel()

	for name, store := range newTestStores(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			secret, err := store.Create("login", nil)
			require.NoError(t, err)

			claimed, err := store.Claim(secret.Token)
			require.NoError(t, err)
			require.True(t, claimed)

			// The secret is now permanently inert.
			claimed, err = store.Claim(secret.Token)
			require.NoError(t, err)
			require.False(t, claimed)

			fetched, err := store.Get(secret.Token)
			require.NoError(t, err)
			require.True(t, fetched.Used())
			require.Equal(t, testTime, fetched.UsedAt.UTC())

			// Claiming an unknown token reports the same error as
			// looking it up.
			_, err = store.Claim("deadbeef")
			require.ErrorIs(t, err, ErrSecretNotFound)
		})
	}
}

// TestStoreClaimConcurrent asserts that concurrent claims on the same token
// yield exactly one winner.
func TestStoreClaimConcurrent(t *testing.T) {
	t.Parallel()

	const numClaims = 16

	for name, store := range newTestStores(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			secret, err := store.Create("login", nil)
			require.NoError(t, err)

			var (
				wg      sync.WaitGroup
				mtx     sync.Mutex
				winners int
			)
			for i := 0; i < numClaims; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()

					claimed, err := store.Claim(
						secret.Token,
					)
					require.NoError(t, err)

					if claimed {
						mtx.Lock()
						winners++
						mtx.Unlock()
					}
				}()
			}
			wg.Wait()

			require.Equal(t, 1, winners)
		})
	}
}

// TestStoreSnapshotIsolation asserts that mutating a fetched secret does not
// write through to the store.
func TestStoreSnapshotIsolation(t *testing.T) {
	t.Parallel()

	for name, store := range newTestStores(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			secret, err := store.Create(
				"withdrawRequest",
				map[string]string{"minWithdrawable": "1"},
			)
			require.NoError(t, err)

			fetched, err := store.Get(secret.Token)
			require.NoError(t, err)
			fetched.Params["minWithdrawable"] = "9999"
			fetched.UsedAt = testTime

			again, err := store.Get(secret.Token)
			require.NoError(t, err)
			require.Equal(t, "1", again.Params["minWithdrawable"])
			require.False(t, again.Used())
		})
	}
}
