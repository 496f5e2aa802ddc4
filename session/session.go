// Package session persists authenticated server sessions between runs: the
// server base URL, access token, and a cached conversation listing. It
// supplies the persisted-session lookup the streaming client depends on.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no session exists for a profile.
var ErrNotFound = errors.New("session not found")

// ConversationRef is one entry of the cached conversation listing.
type ConversationRef struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Session is a persisted server session for one profile.
type Session struct {
	Profile       string            `json:"profile"`
	ServerURL     string            `json:"server_url"`
	AccessToken   string            `json:"access_token"`
	UserID        string            `json:"user_id,omitempty"`
	DeviceName    string            `json:"device_name,omitempty"`
	Conversations []ConversationRef `json:"conversations,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// RememberConversation inserts or refreshes a conversation in the cached
// listing, keeping the most recently updated entry first.
func (s *Session) RememberConversation(id, title string) {
	now := time.Now()
	updated := []ConversationRef{{ID: id, Title: title, UpdatedAt: now}}
	for _, ref := range s.Conversations {
		if ref.ID != id {
			updated = append(updated, ref)
		}
	}
	s.Conversations = updated
	s.UpdatedAt = now
}

// Store persists sessions keyed by profile name.
type Store interface {
	// Load returns the session for a profile, or ErrNotFound.
	Load(ctx context.Context, profile string) (*Session, error)

	// Save writes the session under its profile name.
	Save(ctx context.Context, sess *Session) error

	// Delete removes a profile's session. Deleting a missing profile is not
	// an error.
	Delete(ctx context.Context, profile string) error

	// List returns the known profile names.
	List(ctx context.Context) ([]string, error)
}
