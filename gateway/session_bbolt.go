package gateway

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const sweepInterval = 5 * time.Minute

var sessionBucket = []byte("sessions")

// BoltSessionStore is a SessionStore backed by a bbolt database, so
// sessions survive a gateway restart. A background loop sweeps expired
// records; Lookup also removes any expired record it hits, so correctness
// never depends on the sweep.
type BoltSessionStore struct {
	db       *bbolt.DB
	lifetime time.Duration
	stopOnce sync.Once
	stopCh   chan struct{}
}

var _ SessionStore = (*BoltSessionStore)(nil)

// NewBoltSessionStore opens (or creates) a bbolt database at path and
// returns a persistent session store.
func NewBoltSessionStore(path string, lifetime time.Duration) (*BoltSessionStore, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating session bucket: %w", err)
	}

	s := &BoltSessionStore{
		db:       db,
		lifetime: lifetime,
		stopCh:   make(chan struct{}),
	}
	go s.sweepLoop()
	return s, nil
}

// Close stops the sweep loop and closes the underlying database.
func (s *BoltSessionStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return s.db.Close()
}

func (s *BoltSessionStore) Create(identity string) (string, error) {
	token := uuid.NewString()
	now := time.Now()
	sess := Session{
		Identity:  identity,
		CreatedAt: now,
		ExpiresAt: now.Add(s.lifetime),
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("encoding session: %w", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).Put([]byte(token), data)
	})
	if err != nil {
		return "", fmt.Errorf("persisting session: %w", err)
	}
	sessionsCreated.Inc()
	return token, nil
}

func (s *BoltSessionStore) Lookup(token string) (string, bool) {
	var sess Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(sessionBucket).Get([]byte(token))
		if data == nil {
			return fmt.Errorf("session not found")
		}
		return json.Unmarshal(data, &sess)
	})
	if err != nil {
		return "", false
	}
	if time.Now().After(sess.ExpiresAt) {
		s.Destroy(token)
		return "", false
	}
	return sess.Identity, true
}

func (s *BoltSessionStore) Destroy(token string) {
	_ = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(sessionBucket)
		if b.Get([]byte(token)) != nil {
			sessionsDestroyed.Inc()
		}
		return b.Delete([]byte(token))
	})
}

func (s *BoltSessionStore) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

func (s *BoltSessionStore) sweepExpired() {
	now := time.Now()
	_ = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(sessionBucket)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var sess Session
			if err := json.Unmarshal(v, &sess); err != nil {
				// Corrupt entry, remove it.
				_ = c.Delete()
				continue
			}
			if now.After(sess.ExpiresAt) {
				_ = c.Delete()
			}
		}
		return nil
	})
}
