package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrInvalidProfile is returned when a profile name contains path separators
// or relative path components that could escape the store directory.
var ErrInvalidProfile = errors.New("invalid profile name")

// FileStore persists each profile's session as {dir}/{profile}.json.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

// NewFileStore creates a FileStore rooted at dir, creating the directory if
// needed. A leading "~/" expands to the user's home directory.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, dir[2:])
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// validateProfile rejects names that could resolve outside the store.
func validateProfile(profile string) error {
	if profile == "" || profile == "." || profile == ".." ||
		strings.ContainsAny(profile, "/\\") ||
		strings.Contains(profile, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidProfile, profile)
	}
	return nil
}

func (s *FileStore) path(profile string) (string, error) {
	if err := validateProfile(profile); err != nil {
		return "", err
	}
	p := filepath.Clean(filepath.Join(s.dir, profile+".json"))
	if !strings.HasPrefix(p, s.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q resolves outside store directory", ErrInvalidProfile, profile)
	}
	return p, nil
}

func (s *FileStore) Load(ctx context.Context, profile string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := s.path(profile)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("corrupt session file %s: %w", p, err)
	}
	return &sess, nil
}

func (s *FileStore) Save(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.path(sess.Profile)
	if err != nil {
		return err
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	sess.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	// Tokens live in this file; keep it private.
	return os.WriteFile(p, data, 0o600)
}

func (s *FileStore) Delete(ctx context.Context, profile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.path(profile)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var profiles []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		profiles = append(profiles, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(profiles)
	return profiles, nil
}
