package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation. Suitable for tests;
// data is lost when the process exits.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (s *MemoryStore) Load(ctx context.Context, profile string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[profile]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *sess
	return &copied, nil
}

func (s *MemoryStore) Save(ctx context.Context, sess *Session) error {
	if err := validateProfile(sess.Profile); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	sess.UpdatedAt = time.Now()
	copied := *sess
	s.sessions[sess.Profile] = &copied
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, profile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, profile)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profiles := make([]string, 0, len(s.sessions))
	for profile := range s.sessions {
		profiles = append(profiles, profile)
	}
	sort.Strings(profiles)
	return profiles, nil
}
