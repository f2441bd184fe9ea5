// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/circle-app/circle/internal/models"
)

// Key prefixes for BadgerDB storage.
const (
	userKeyPrefix       = "user:"
	usernameKeyPrefix   = "user_name:"
	circleKeyPrefix     = "circle:"
	memberKeyPrefix     = "member:"      // member:<circleID>:<userID>
	userCircleKeyPrefix = "user_circle:" // user_circle:<userID>:<circleID>
	messageKeyPrefix    = "msg:"
	circleMsgKeyPrefix  = "circle_msg:" // circle_msg:<circleID>:<padded ns>:<msgID>
	reactionKeyPrefix   = "react:"      // react:<msgID>:<userID>:<emoji>
	notifKeyPrefix      = "notif:"      // notif:<userID>:<padded ns>:<id>
	notifByIDKeyPrefix  = "notif_id:"   // notif_id:<id> -> ordered key
)

// BadgerStore implements Store using BadgerDB for durable storage.
// Ordered scans (circle message history, notification feeds) ride on
// Badger's lexicographic key iteration with zero-padded nanosecond
// timestamps embedded in the keys.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates a BadgerDB-backed store on an already-open database.
// The database may be shared with other components (e.g. the session store).
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// orderedKey builds a lexicographically sortable key segment from a timestamp.
func orderedKey(t time.Time) string {
	return fmt.Sprintf("%020d", t.UTC().UnixNano())
}

// getJSON reads and unmarshals a single key inside a view transaction.
func getJSON(txn *badger.Txn, key string, out any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

// setJSON marshals and writes a single key inside an update transaction.
func setJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set([]byte(key), data)
}

// CreateUser stores a new user. Usernames are unique.
func (s *BadgerStore) CreateUser(ctx context.Context, user *models.User) error {
	return s.db.Update(func(txn *badger.Txn) error {
		nameKey := usernameKeyPrefix + user.Username
		if _, err := txn.Get([]byte(nameKey)); err == nil {
			return ErrDuplicate
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check username: %w", err)
		}

		if err := setJSON(txn, userKeyPrefix+user.ID, user); err != nil {
			return err
		}
		return txn.Set([]byte(nameKey), []byte(user.ID))
	})
}

// GetUser retrieves a user by id.
func (s *BadgerStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKeyPrefix+id, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *BadgerStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(usernameKeyPrefix + username))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get username mapping: %w", err)
		}

		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}
		return getJSON(txn, userKeyPrefix+id, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateCircle stores a new circle and adds the creator as its first member.
func (s *BadgerStore) CreateCircle(ctx context.Context, circle *models.Circle) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := circleKeyPrefix + circle.ID
		if _, err := txn.Get([]byte(key)); err == nil {
			return ErrDuplicate
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check circle: %w", err)
		}

		if err := setJSON(txn, key, circle); err != nil {
			return err
		}
		return addMemberTxn(txn, circle.ID, circle.CreatorID)
	})
}

// GetCircle retrieves a circle by id.
func (s *BadgerStore) GetCircle(ctx context.Context, id string) (*models.Circle, error) {
	var circle models.Circle
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, circleKeyPrefix+id, &circle)
	})
	if err != nil {
		return nil, err
	}
	return &circle, nil
}

// addMemberTxn writes both directions of the membership relation.
func addMemberTxn(txn *badger.Txn, circleID, userID string) error {
	membership := models.CircleMembership{
		CircleID: circleID,
		UserID:   userID,
		JoinedAt: time.Now().UTC(),
	}
	if err := setJSON(txn, memberKeyPrefix+circleID+":"+userID, &membership); err != nil {
		return err
	}
	return txn.Set([]byte(userCircleKeyPrefix+userID+":"+circleID), []byte(circleID))
}

// GetUserCircles returns all circles the user belongs to.
func (s *BadgerStore) GetUserCircles(ctx context.Context, userID string) ([]*models.Circle, error) {
	var circles []*models.Circle
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(userCircleKeyPrefix + userID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var circleID string
			if err := it.Item().Value(func(val []byte) error {
				circleID = string(val)
				return nil
			}); err != nil {
				return err
			}

			var circle models.Circle
			if err := getJSON(txn, circleKeyPrefix+circleID, &circle); err != nil {
				// Circle deleted out-of-band; skip the dangling membership.
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			circles = append(circles, &circle)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return circles, nil
}

// IsCircleMember reports whether the user currently belongs to the circle.
func (s *BadgerStore) IsCircleMember(ctx context.Context, circleID, userID string) (bool, error) {
	var member bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(memberKeyPrefix + circleID + ":" + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get membership: %w", err)
		}
		member = true
		return nil
	})
	return member, err
}

// AddCircleMember adds the user to the circle. Idempotent.
func (s *BadgerStore) AddCircleMember(ctx context.Context, circleID, userID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(circleKeyPrefix + circleID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("get circle: %w", err)
		}
		if _, err := txn.Get([]byte(memberKeyPrefix + circleID + ":" + userID)); err == nil {
			return nil // already a member
		}
		return addMemberTxn(txn, circleID, userID)
	})
}

// RemoveCircleMember removes the user from the circle. Idempotent.
func (s *BadgerStore) RemoveCircleMember(ctx context.Context, circleID, userID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(memberKeyPrefix + circleID + ":" + userID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete membership: %w", err)
		}
		if err := txn.Delete([]byte(userCircleKeyPrefix + userID + ":" + circleID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete user mapping: %w", err)
		}
		return nil
	})
}

// CreateMessage stores a new message and indexes it in its circle's timeline.
func (s *BadgerStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, messageKeyPrefix+msg.ID, msg); err != nil {
			return err
		}
		orderKey := circleMsgKeyPrefix + msg.CircleID + ":" + orderedKey(msg.CreatedAt) + ":" + msg.ID
		return txn.Set([]byte(orderKey), []byte(msg.ID))
	})
}

// GetMessage retrieves a message by id.
func (s *BadgerStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, messageKeyPrefix+id, &msg)
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetCircleMessages returns the circle's messages in creation order.
func (s *BadgerStore) GetCircleMessages(ctx context.Context, circleID string) ([]*models.Message, error) {
	msgs := make([]*models.Message, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(circleMsgKeyPrefix + circleID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var id string
			if err := it.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}

			var msg models.Message
			if err := getJSON(txn, messageKeyPrefix+id, &msg); err != nil {
				return err
			}
			msgs = append(msgs, &msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// EditMessage replaces the message content and sets the edited flag.
func (s *BadgerStore) EditMessage(ctx context.Context, id, content string) (*models.Message, error) {
	var msg models.Message
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, messageKeyPrefix+id, &msg); err != nil {
			return err
		}
		msg.Content = content
		msg.Edited = true
		return setJSON(txn, messageKeyPrefix+id, &msg)
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage soft-deletes the message. Reactions are not purged and the
// timeline index entry is retained.
func (s *BadgerStore) DeleteMessage(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, messageKeyPrefix+id, &msg); err != nil {
			return err
		}
		msg.Deleted = true
		msg.Content = ""
		return setJSON(txn, messageKeyPrefix+id, &msg)
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// AddReaction upserts the (message, user, emoji) triple. Idempotent.
func (s *BadgerStore) AddReaction(ctx context.Context, reaction *models.Reaction) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := reactionKeyPrefix + reaction.MessageID + ":" + reaction.UserID + ":" + reaction.Emoji
		if _, err := txn.Get([]byte(key)); err == nil {
			return nil // already reacted with this emoji
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check reaction: %w", err)
		}
		return setJSON(txn, key, reaction)
	})
}

// RemoveReaction deletes the triple if present. Removing a missing reaction
// is a no-op, not an error.
func (s *BadgerStore) RemoveReaction(ctx context.Context, messageID, userID, emoji string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := reactionKeyPrefix + messageID + ":" + userID + ":" + emoji
		if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete reaction: %w", err)
		}
		return nil
	})
}

// GetMessageReactions returns the message's reactions ordered by key
// (user id, then emoji).
func (s *BadgerStore) GetMessageReactions(ctx context.Context, messageID string) ([]*models.Reaction, error) {
	reactions := make([]*models.Reaction, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(reactionKeyPrefix + messageID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var reaction models.Reaction
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &reaction)
			}); err != nil {
				return err
			}
			reactions = append(reactions, &reaction)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reactions, nil
}

// CreateNotification durably stores a notification for later retrieval.
func (s *BadgerStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := notifKeyPrefix + n.UserID + ":" + orderedKey(n.CreatedAt) + ":" + n.ID
		if err := setJSON(txn, key, n); err != nil {
			return err
		}
		// Secondary index so MarkNotificationRead can find the ordered key.
		return txn.Set([]byte(notifByIDKeyPrefix+n.ID), []byte(key))
	})
}

// GetUserNotifications returns the user's notifications, newest first.
func (s *BadgerStore) GetUserNotifications(ctx context.Context, userID string) ([]*models.Notification, error) {
	notifs := make([]*models.Notification, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(notifKeyPrefix + userID + ":")
		// Reverse iteration seeks past the last key of the prefix range.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			var n models.Notification
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			}); err != nil {
				return err
			}
			notifs = append(notifs, &n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return notifs, nil
}

// MarkNotificationRead marks a notification read. The notification must
// belong to the given user.
func (s *BadgerStore) MarkNotificationRead(ctx context.Context, id, userID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(notifByIDKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get notification index: %w", err)
		}

		var key string
		if err := item.Value(func(val []byte) error {
			key = string(val)
			return nil
		}); err != nil {
			return err
		}

		var n models.Notification
		if err := getJSON(txn, key, &n); err != nil {
			return err
		}
		if n.UserID != userID {
			return ErrNotFound
		}
		n.Read = true
		return setJSON(txn, key, &n)
	})
}

// Open opens (or creates) a BadgerDB database at the given path with logging
// routed away from Badger's default logger. An empty path with inMemory set
// opens an ephemeral database.
func Open(path string, inMemory bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return db, nil
}
