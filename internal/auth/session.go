// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

// Package auth provides cookie-based session authentication shared by the
// HTTP and WebSocket layers. Both layers resolve the same session store, so
// a session created by the login endpoint authenticates WebSocket upgrades.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/circle-app/circle/internal/logging"
)

// Session-related errors.
var (
	// ErrSessionNotFound is returned when a session is not found in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when trying to access an expired session.
	ErrSessionExpired = errors.New("session expired")
)

// Session represents an authenticated user session.
type Session struct {
	// ID is the unique session identifier (opaque token).
	ID string `json:"id"`

	// UserID is the authenticated user's unique identifier.
	UserID string `json:"userId"`

	// Username is the authenticated user's username.
	Username string `json:"username"`

	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"createdAt"`

	// ExpiresAt is when the session expires.
	ExpiresAt time.Time `json:"expiresAt"`

	// LastAccessedAt is when the session was last accessed.
	LastAccessedAt time.Time `json:"lastAccessedAt"`
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// NewSession creates a new session for the given user with the given duration.
func NewSession(userID, username string, duration time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:             generateSessionID(),
		UserID:         userID,
		Username:       username,
		CreatedAt:      now,
		ExpiresAt:      now.Add(duration),
		LastAccessedAt: now,
	}
}

// generateSessionID generates a cryptographically secure session ID.
func generateSessionID() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to less secure but still random ID
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(bytes)
}

// SessionStore defines the interface for session storage backends.
type SessionStore interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by ID.
	// Returns ErrSessionNotFound if not found.
	// Returns ErrSessionExpired if the session exists but is expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes a session by ID.
	// Does not return an error if the session doesn't exist.
	Delete(ctx context.Context, id string) error

	// Touch updates the session's last accessed time and extends expiry.
	Touch(ctx context.Context, id string, newExpiry time.Time) error

	// CleanupExpired removes all expired sessions.
	// Returns the count of deleted sessions.
	CleanupExpired(ctx context.Context) (int, error)
}

// MemorySessionStore is an in-memory implementation of SessionStore.
// Suitable for development and testing. For production, use BadgerSessionStore.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*Session),
	}
}

// Create stores a new session.
func (s *MemorySessionStore) Create(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *session
	s.sessions[session.ID] = &stored
	return nil
}

// Get retrieves a session by ID.
func (s *MemorySessionStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}

	copied := *session
	return &copied, nil
}

// Delete removes a session by ID.
func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Touch updates the session's last accessed time and extends expiry.
func (s *MemorySessionStore) Touch(ctx context.Context, id string, newExpiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.LastAccessedAt = time.Now()
	session.ExpiresAt = newExpiry
	return nil
}

// CleanupExpired removes all expired sessions.
func (s *MemorySessionStore) CleanupExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, session := range s.sessions {
		if session.IsExpired() {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}

// CleanupService periodically removes expired sessions. It implements
// suture.Service and runs under the application supervisor tree.
type CleanupService struct {
	store    SessionStore
	interval time.Duration
}

// NewCleanupService creates a cleanup service for the given store.
func NewCleanupService(store SessionStore, interval time.Duration) *CleanupService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CleanupService{store: store, interval: interval}
}

// Serve runs the cleanup loop until the context is canceled.
func (s *CleanupService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			count, err := s.store.CleanupExpired(ctx)
			if err != nil {
				logging.Error().Err(err).Msg("session cleanup failed")
				continue
			}
			if count > 0 {
				logging.Debug().Int("count", count).Msg("expired sessions removed")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *CleanupService) String() string { return "session-cleanup" }
