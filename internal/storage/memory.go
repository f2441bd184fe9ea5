// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/circle-app/circle/internal/models"
)

// MemoryStore is an in-memory Store implementation.
// Suitable for development and testing. For production, use BadgerStore.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]*models.User
	usernames     map[string]string // username -> user id
	circles       map[string]*models.Circle
	members       map[string]map[string]time.Time // circleID -> userID -> joinedAt
	messages      map[string]*models.Message
	circleOrder   map[string][]string // circleID -> message ids in creation order
	reactions     map[string][]*models.Reaction
	notifications map[string][]*models.Notification // userID -> newest last
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*models.User),
		usernames:     make(map[string]string),
		circles:       make(map[string]*models.Circle),
		members:       make(map[string]map[string]time.Time),
		messages:      make(map[string]*models.Message),
		circleOrder:   make(map[string][]string),
		reactions:     make(map[string][]*models.Reaction),
		notifications: make(map[string][]*models.Notification),
	}
}

// CreateUser stores a new user. Usernames are unique.
func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usernames[user.Username]; ok {
		return ErrDuplicate
	}
	stored := *user
	s.users[user.ID] = &stored
	s.usernames[user.Username] = user.ID
	return nil
}

// GetUser retrieves a user by id.
func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

// GetUserByUsername retrieves a user by username.
func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usernames[username]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s.users[id]
	return &copied, nil
}

// CreateCircle stores a new circle and adds the creator as its first member.
func (s *MemoryStore) CreateCircle(ctx context.Context, circle *models.Circle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.circles[circle.ID]; ok {
		return ErrDuplicate
	}
	stored := *circle
	s.circles[circle.ID] = &stored
	s.members[circle.ID] = map[string]time.Time{circle.CreatorID: time.Now().UTC()}
	return nil
}

// GetCircle retrieves a circle by id.
func (s *MemoryStore) GetCircle(ctx context.Context, id string) (*models.Circle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	circle, ok := s.circles[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *circle
	return &copied, nil
}

// GetUserCircles returns all circles the user belongs to.
func (s *MemoryStore) GetUserCircles(ctx context.Context, userID string) ([]*models.Circle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var circles []*models.Circle
	for circleID, roster := range s.members {
		if _, ok := roster[userID]; ok {
			copied := *s.circles[circleID]
			circles = append(circles, &copied)
		}
	}
	sort.Slice(circles, func(i, j int) bool { return circles[i].ID < circles[j].ID })
	return circles, nil
}

// IsCircleMember reports whether the user currently belongs to the circle.
func (s *MemoryStore) IsCircleMember(ctx context.Context, circleID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roster, ok := s.members[circleID]
	if !ok {
		return false, nil
	}
	_, ok = roster[userID]
	return ok, nil
}

// AddCircleMember adds the user to the circle. Idempotent.
func (s *MemoryStore) AddCircleMember(ctx context.Context, circleID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.circles[circleID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.members[circleID][userID]; !ok {
		s.members[circleID][userID] = time.Now().UTC()
	}
	return nil
}

// RemoveCircleMember removes the user from the circle. Idempotent.
func (s *MemoryStore) RemoveCircleMember(ctx context.Context, circleID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if roster, ok := s.members[circleID]; ok {
		delete(roster, userID)
	}
	return nil
}

// CreateMessage stores a new message, appending it to its circle's order.
func (s *MemoryStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *msg
	s.messages[msg.ID] = &stored
	s.circleOrder[msg.CircleID] = append(s.circleOrder[msg.CircleID], msg.ID)
	return nil
}

// GetMessage retrieves a message by id.
func (s *MemoryStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *msg
	return &copied, nil
}

// GetCircleMessages returns the circle's messages in creation order.
func (s *MemoryStore) GetCircleMessages(ctx context.Context, circleID string) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.circleOrder[circleID]
	msgs := make([]*models.Message, 0, len(ids))
	for _, id := range ids {
		copied := *s.messages[id]
		msgs = append(msgs, &copied)
	}
	return msgs, nil
}

// EditMessage replaces the message content and sets the edited flag.
func (s *MemoryStore) EditMessage(ctx context.Context, id, content string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	msg.Content = content
	msg.Edited = true
	copied := *msg
	return &copied, nil
}

// DeleteMessage soft-deletes the message. Reactions are not purged.
func (s *MemoryStore) DeleteMessage(ctx context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	msg.Deleted = true
	msg.Content = ""
	copied := *msg
	return &copied, nil
}

// AddReaction upserts the (message, user, emoji) triple. Idempotent.
func (s *MemoryStore) AddReaction(ctx context.Context, reaction *models.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.reactions[reaction.MessageID] {
		if r.UserID == reaction.UserID && r.Emoji == reaction.Emoji {
			return nil
		}
	}
	stored := *reaction
	s.reactions[reaction.MessageID] = append(s.reactions[reaction.MessageID], &stored)
	return nil
}

// RemoveReaction deletes the triple if present. Removing a missing reaction
// is a no-op, not an error.
func (s *MemoryStore) RemoveReaction(ctx context.Context, messageID, userID, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.reactions[messageID]
	for i, r := range list {
		if r.UserID == userID && r.Emoji == emoji {
			s.reactions[messageID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

// GetMessageReactions returns the message's reactions in creation order.
func (s *MemoryStore) GetMessageReactions(ctx context.Context, messageID string) ([]*models.Reaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.reactions[messageID]
	out := make([]*models.Reaction, 0, len(list))
	for _, r := range list {
		copied := *r
		out = append(out, &copied)
	}
	return out, nil
}

// CreateNotification durably stores a notification for later retrieval.
func (s *MemoryStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *n
	s.notifications[n.UserID] = append(s.notifications[n.UserID], &stored)
	return nil
}

// GetUserNotifications returns the user's notifications, newest first.
func (s *MemoryStore) GetUserNotifications(ctx context.Context, userID string) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.notifications[userID]
	out := make([]*models.Notification, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		copied := *list[i]
		out = append(out, &copied)
	}
	return out, nil
}

// MarkNotificationRead marks a notification read. The notification must
// belong to the given user.
func (s *MemoryStore) MarkNotificationRead(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications[userID] {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return ErrNotFound
}
