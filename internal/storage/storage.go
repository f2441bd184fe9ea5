// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

// Package storage defines the durable data boundary of the chat core and
// its BadgerDB and in-memory implementations.
//
// All durable data (users, circles, memberships, messages, reactions,
// notifications) is owned here. The chat core holds no durable state and
// can be restarted without data loss.
package storage

import (
	"context"
	"errors"

	"github.com/circle-app/circle/internal/models"
)

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique constraint would be violated,
	// e.g. registering a username twice.
	ErrDuplicate = errors.New("record already exists")
)

// Store is the durable data interface consumed by the chat core and the
// REST surface. Reaction writes are idempotent: adding an existing
// (message, user, emoji) triple or removing a missing one is a no-op.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// Circles and memberships. Membership is ground truth for all
	// authorization decisions in the chat core; the fan-out engine reads
	// it but never writes it.
	CreateCircle(ctx context.Context, circle *models.Circle) error
	GetCircle(ctx context.Context, id string) (*models.Circle, error)
	GetUserCircles(ctx context.Context, userID string) ([]*models.Circle, error)
	IsCircleMember(ctx context.Context, circleID, userID string) (bool, error)
	AddCircleMember(ctx context.Context, circleID, userID string) error
	RemoveCircleMember(ctx context.Context, circleID, userID string) error

	// Messages. DeleteMessage is a soft delete: the Deleted flag is set and
	// the content cleared, but the record is retained so reactions stay
	// addressable. GetCircleMessages returns ascending creation order.
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	GetCircleMessages(ctx context.Context, circleID string) ([]*models.Message, error)
	EditMessage(ctx context.Context, id, content string) (*models.Message, error)
	DeleteMessage(ctx context.Context, id string) (*models.Message, error)

	// Reactions
	AddReaction(ctx context.Context, reaction *models.Reaction) error
	RemoveReaction(ctx context.Context, messageID, userID, emoji string) error
	GetMessageReactions(ctx context.Context, messageID string) ([]*models.Reaction, error)

	// Notifications. Creation is durable; live delivery is the broadcaster's
	// concern. GetUserNotifications returns newest first.
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetUserNotifications(ctx context.Context, userID string) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) error
}
