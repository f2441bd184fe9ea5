// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package models

import "time"

// Notification types pushed over the wire and stored for poll-based retrieval.
const (
	NotificationTypeCircleJoin = "circle_join"
	NotificationTypeSystem     = "system"
)

// Notification targets a single user. It is durably stored at creation time
// and additionally pushed live to every open connection of the target user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
