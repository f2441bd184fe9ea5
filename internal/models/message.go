// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package models

import "time"

// Message is a chat message posted to exactly one circle by exactly one
// author. Only the author may edit or delete it; deletion is a soft delete
// (Deleted set, Content cleared, row retained).
type Message struct {
	ID        string    `json:"id"`
	CircleID  string    `json:"circleId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Edited    bool      `json:"edited"`
	Deleted   bool      `json:"deleted"`
}

// Reaction relates a (message, user, emoji) triple. A user may react to a
// message with multiple distinct emoji but at most once with the same emoji.
type Reaction struct {
	MessageID string    `json:"messageId"`
	UserID    string    `json:"userId"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}
