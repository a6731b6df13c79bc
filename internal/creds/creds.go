// Package creds owns the persisted access/refresh token pair. It is the
// store of record: the session manager reads and writes through it but never
// caches tokens past a request.
package creds

import (
	"sync"

	"plantaria/internal/errs"
)

// Credential is the opaque bearer token pair identifying a session. The two
// tokens are always obtained together; an absent access token means logged out.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

// Valid reports whether the pair represents a logged-in session.
func (c Credential) Valid() bool {
	return c.AccessToken != ""
}

// Store persists the credential pair across process restarts.
type Store interface {
	// Get returns the stored credential, or errs.ErrNotFound when logged out.
	Get() (Credential, error)
	// Set replaces the stored pair atomically. Writes are last-writer-wins;
	// refresh itself is serialized by the session manager.
	Set(Credential) error
	// Clear deletes the stored pair. Clearing an empty store is not an error.
	Clear() error
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu   sync.Mutex
	cred Credential
	set  bool
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Get() (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return Credential{}, errs.ErrNotFound
	}
	return s.cred, nil
}

func (s *MemStore) Set(c Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = c
	s.set = true
	return nil
}

func (s *MemStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = Credential{}
	s.set = false
	return nil
}
