// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

// Package message implements the mutation service for chat messages:
// create, edit, soft delete, and the reaction model. Authorship and
// validation invariants are enforced here, at the mutation boundary, not at
// the transport boundary - both the WebSocket fan-out engine and the REST
// surface go through this service.
package message

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/circle-app/circle/internal/models"
	"github.com/circle-app/circle/internal/storage"
)

// Service error taxonomy. The API layer maps these to HTTP statuses:
// ErrNotAuthorized -> 403, ErrEmptyContent / ErrMissingEmoji -> 400,
// ErrNotFound -> 404.
var (
	// ErrNotAuthorized is returned when a user attempts to mutate a message
	// they did not author, or read a circle they do not belong to.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrEmptyContent is returned when message content is blank after trimming.
	ErrEmptyContent = errors.New("message content cannot be empty")

	// ErrMissingEmoji is returned when a reaction has no emoji.
	ErrMissingEmoji = errors.New("emoji is required")

	// ErrNotFound is returned for an unknown message id.
	ErrNotFound = errors.New("message not found")
)

// Service owns create/edit/delete and reaction operations against persisted
// messages.
type Service struct {
	store storage.Store
}

// NewService creates a message mutation service on the given store.
func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

// Create persists and returns a new message. Callers must have already
// verified the author's circle membership - membership is deliberately not
// re-checked here so the same operation serves both the fan-out engine
// (which checks the sender against storage) and the REST surface (which
// checks in its handler).
func (s *Service) Create(ctx context.Context, circleID, authorID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	msg := &models.Message{
		ID:        uuid.NewString(),
		CircleID:  circleID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Edit replaces a message's content and marks it edited. Only the author may
// edit; the message must not be blank after trimming.
func (s *Service) Edit(ctx context.Context, messageID, userID, content string) (*models.Message, error) {
	if _, err := s.getOwned(ctx, messageID, userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	return s.store.EditMessage(ctx, messageID, content)
}

// Delete soft-deletes a message: the deleted flag is set and content cleared,
// but reactions are not purged. Only the author may delete.
func (s *Service) Delete(ctx context.Context, messageID, userID string) (*models.Message, error) {
	if _, err := s.getOwned(ctx, messageID, userID); err != nil {
		return nil, err
	}
	return s.store.DeleteMessage(ctx, messageID)
}

// getOwned fetches a message and enforces the author-only invariant.
func (s *Service) getOwned(ctx context.Context, messageID, userID string) (*models.Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if msg.AuthorID != userID {
		return nil, ErrNotAuthorized
	}
	return msg, nil
}

// AddReaction upserts the (message, user, emoji) triple. Adding an existing
// reaction is a no-op in effect.
func (s *Service) AddReaction(ctx context.Context, messageID, userID, emoji string) (*models.Reaction, error) {
	if strings.TrimSpace(emoji) == "" {
		return nil, ErrMissingEmoji
	}
	if _, err := s.store.GetMessage(ctx, messageID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	reaction := &models.Reaction{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AddReaction(ctx, reaction); err != nil {
		return nil, err
	}
	return reaction, nil
}

// RemoveReaction deletes the triple. Removing a nonexistent reaction is a
// no-op, not an error.
func (s *Service) RemoveReaction(ctx context.Context, messageID, userID, emoji string) error {
	return s.store.RemoveReaction(ctx, messageID, userID, emoji)
}

// Reactions returns the message's reactions as a thin ordered read. Count
// aggregation and "did current user react" flags are presentation logic and
// belong to the caller.
func (s *Service) Reactions(ctx context.Context, messageID string) ([]*models.Reaction, error) {
	return s.store.GetMessageReactions(ctx, messageID)
}

// CircleMessages returns a circle's message history in creation order,
// gated on the requesting user's current membership.
func (s *Service) CircleMessages(ctx context.Context, circleID, userID string) ([]*models.Message, error) {
	member, err := s.store.IsCircleMember(ctx, circleID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotAuthorized
	}
	return s.store.GetCircleMessages(ctx, circleID)
}
