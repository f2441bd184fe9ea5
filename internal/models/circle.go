// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package models

import "time"

// Circle is a named group of users. The chat core treats circles and their
// membership rosters as read-only ground truth fetched from storage.
type Circle struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatorID string    `json:"creatorId"`
	CreatedAt time.Time `json:"createdAt"`
}

// CircleMembership relates a user to a circle. Unique per (circle, user) pair.
type CircleMembership struct {
	CircleID string    `json:"circleId"`
	UserID   string    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}
