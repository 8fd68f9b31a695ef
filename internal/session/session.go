// Package session holds connected storage handles between user actions. A
// Session is created by a successful connect and keeps the handle, and
// therefore the credentials behind it, in memory only:
//
//	connect → browse (navigate, list) → load and visualize → close | expire.
//
// Nothing is persisted; closing or expiring a session closes its handle.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomasbasham/bucketview/internal/storage"
)

// Session is a single user's connection to one bucket.
type Session struct {
	ID        string      `json:"id"`
	Root      storage.URI `json:"root"`
	Current   storage.URI `json:"current"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	// Handle is the authenticated storage handle. Never serialised.
	Handle storage.Handle `json:"-"`
}

// Store persists sessions for the lifetime of the process.
type Store interface {
	Create(h storage.Handle, uri storage.URI) (*Session, error)
	Get(id string) (*Session, error)
	Navigate(id string, to storage.URI) (*Session, error)
	Delete(id string) error
}

// MemoryStore is a concurrency-safe in-memory Store. Sessions idle for
// longer than the TTL are dropped the next time they are looked up.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates a MemoryStore. A zero ttl never expires sessions.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(h storage.Handle, uri storage.URI) (*Session, error) {
	now := s.now()
	sess := &Session{
		ID:        uuid.New().String(),
		Root:      uri,
		Current:   uri,
		CreatedAt: now,
		UpdatedAt: now,
		Handle:    h,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	copy := *sess
	return &copy, nil
}

func (s *MemoryStore) Get(id string) (*Session, error) {
	return s.update(id, func(*Session) {})
}

// Navigate moves the session's current folder. Navigation is confined to
// the bucket the session was connected to.
func (s *MemoryStore) Navigate(id string, to storage.URI) (*Session, error) {
	var err error
	sess, uerr := s.update(id, func(sess *Session) {
		if to.Scheme != sess.Root.Scheme || to.Bucket != sess.Root.Bucket {
			err = fmt.Errorf("session %q is connected to %s://%s", id, sess.Root.Scheme, sess.Root.Bucket)
			return
		}
		sess.Current = to
	})
	if uerr != nil {
		return nil, uerr
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Delete removes the session and closes its handle.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %q not found", id)
	}
	return sess.Handle.Close()
}

func (s *MemoryStore) update(id string, fn func(*Session)) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok && s.expired(sess) {
		delete(s.sessions, id)
		s.mu.Unlock()
		_ = sess.Handle.Close()
		return nil, fmt.Errorf("session %q expired", id)
	}
	defer s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("session %q not found", id)
	}
	fn(sess)
	sess.UpdatedAt = s.now()

	// Return a copy to prevent callers from mutating internal state.
	copy := *sess
	return &copy, nil
}

func (s *MemoryStore) expired(sess *Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.UpdatedAt) > s.ttl
}
