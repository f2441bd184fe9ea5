// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

// Package models defines the core data structures shared across the
// application: users, circles, memberships, messages, reactions, and
// notifications.
//
// Everything durable in this package is owned by the storage layer; the
// chat core only holds ephemeral connection state. Messages are never
// hard-deleted - the Deleted flag is set and the content cleared so that
// reactions remain addressable.
package models
