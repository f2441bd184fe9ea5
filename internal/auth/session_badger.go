// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Key prefix for BadgerDB session storage.
const sessionKeyPrefix = "session:"

// BadgerSessionStore implements SessionStore using BadgerDB for durable
// storage. Sessions survive process restarts, so live WebSocket clients can
// reconnect and re-authenticate without logging in again.
type BadgerSessionStore struct {
	db *badger.DB
}

// NewBadgerSessionStore creates a new BadgerDB-backed session store.
func NewBadgerSessionStore(db *badger.DB) *BadgerSessionStore {
	return &BadgerSessionStore{db: db}
}

// Create stores a new session.
func (s *BadgerSessionStore) Create(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(sessionKeyPrefix+session.ID), data)
	})
}

// Get retrieves a session by ID.
func (s *BadgerSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	var session Session

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		})
	})
	if err != nil {
		return nil, err
	}

	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	return &session, nil
}

// Delete removes a session by ID.
func (s *BadgerSessionStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(sessionKeyPrefix + id))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
}

// Touch updates the session's last accessed time and extends expiry.
func (s *BadgerSessionStore) Touch(ctx context.Context, id string, newExpiry time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}

		var session Session
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		}); err != nil {
			return err
		}

		session.LastAccessedAt = time.Now()
		session.ExpiresAt = newExpiry

		data, err := json.Marshal(&session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		return txn.Set([]byte(sessionKeyPrefix+id), data)
	})
}

// CleanupExpired removes all expired sessions.
func (s *BadgerSessionStore) CleanupExpired(ctx context.Context) (int, error) {
	var expired []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(sessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var session Session
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &session)
			}); err != nil {
				return err
			}
			if session.IsExpired() {
				expired = append(expired, session.ID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range expired {
		if err := s.Delete(ctx, id); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
