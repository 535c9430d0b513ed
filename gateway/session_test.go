package gateway

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore(8 * time.Hour)

	token, err := store.Create("admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	identity, ok := store.Lookup(token)
	require.True(t, ok)
	assert.Equal(t, "admin", identity)

	other, err := store.Create("admin")
	require.NoError(t, err)
	assert.NotEqual(t, token, other, "tokens must be unique per session")

	store.Destroy(token)
	_, ok = store.Lookup(token)
	assert.False(t, ok)

	// Destroy is idempotent.
	store.Destroy(token)
	_, ok = store.Lookup(other)
	assert.True(t, ok, "destroying one session must not touch another")
}

func TestMemorySessionStoreUnknownToken(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)
	_, ok := store.Lookup("no-such-token")
	assert.False(t, ok)
}

func TestMemorySessionStoreAbsoluteExpiry(t *testing.T) {
	store := NewMemorySessionStore(8 * time.Hour)

	current := time.Now()
	store.now = func() time.Time { return current }

	token, err := store.Create("admin")
	require.NoError(t, err)

	// Just before expiry the session is live; activity does not extend it.
	current = current.Add(8*time.Hour - time.Second)
	_, ok := store.Lookup(token)
	require.True(t, ok)

	current = current.Add(2 * time.Second)
	_, ok = store.Lookup(token)
	assert.False(t, ok, "session must expire at its absolute deadline")

	// The expired record was removed, not just hidden.
	store.mu.RLock()
	_, present := store.data[token]
	store.mu.RUnlock()
	assert.False(t, present)
}

func TestMemorySessionStoreSweepsOnCreate(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)

	current := time.Now()
	store.now = func() time.Time { return current }

	stale, err := store.Create("admin")
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)
	_, err = store.Create("admin")
	require.NoError(t, err)

	store.mu.RLock()
	_, present := store.data[stale]
	store.mu.RUnlock()
	assert.False(t, present, "create must sweep expired sessions")
}

func TestMemorySessionStoreConcurrentAccess(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				token, err := store.Create("admin")
				assert.NoError(t, err)

				identity, ok := store.Lookup(token)
				assert.True(t, ok)
				assert.Equal(t, "admin", identity)

				store.Destroy(token)
				_, ok = store.Lookup(token)
				assert.False(t, ok)
			}
		}()
	}
	wg.Wait()

	// Only each goroutine's own sessions were touched; the map is empty.
	store.mu.RLock()
	remaining := len(store.data)
	store.mu.RUnlock()
	assert.Zero(t, remaining)
}

func TestBoltSessionStoreConcurrentAccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewBoltSessionStore(path, time.Hour)
	require.NoError(t, err)
	defer store.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				token, err := store.Create("admin")
				assert.NoError(t, err)

				identity, ok := store.Lookup(token)
				assert.True(t, ok)
				assert.Equal(t, "admin", identity)

				store.Destroy(token)
				_, ok = store.Lookup(token)
				assert.False(t, ok)
			}
		}()
	}
	wg.Wait()
}

func TestBoltSessionStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewBoltSessionStore(path, time.Hour)
	require.NoError(t, err)

	token, err := store.Create("admin")
	require.NoError(t, err)

	identity, ok := store.Lookup(token)
	require.True(t, ok)
	assert.Equal(t, "admin", identity)

	store.Destroy(token)
	_, ok = store.Lookup(token)
	assert.False(t, ok)
	store.Destroy(token) // idempotent

	require.NoError(t, store.Close())
}

func TestBoltSessionStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewBoltSessionStore(path, time.Hour)
	require.NoError(t, err)
	token, err := store.Create("admin")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewBoltSessionStore(path, time.Hour)
	require.NoError(t, err)
	defer reopened.Close()

	identity, ok := reopened.Lookup(token)
	require.True(t, ok)
	assert.Equal(t, "admin", identity)
}

func TestBoltSessionStoreExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewBoltSessionStore(path, time.Millisecond)
	require.NoError(t, err)
	defer store.Close()

	token, err := store.Create("admin")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, ok := store.Lookup(token)
	assert.False(t, ok)
}

func TestBoltSessionStoreSweepExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewBoltSessionStore(path, time.Millisecond)
	require.NoError(t, err)
	defer store.Close()

	token, err := store.Create("admin")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	store.sweepExpired()

	// The record is gone from the bucket itself, not just filtered out.
	err = store.db.View(func(tx *bbolt.Tx) error {
		assert.Nil(t, tx.Bucket(sessionBucket).Get([]byte(token)))
		return nil
	})
	require.NoError(t, err)
}
