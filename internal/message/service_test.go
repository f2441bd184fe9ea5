// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package message

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/circle-app/circle/internal/models"
	"github.com/circle-app/circle/internal/storage"
)

func setupService(t *testing.T) (*Service, storage.Store, string) {
	t.Helper()

	store := storage.NewMemoryStore()
	circle := &models.Circle{
		ID:        uuid.NewString(),
		Name:      "early-risers",
		CreatorID: "author",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateCircle(context.Background(), circle); err != nil {
		t.Fatalf("seed circle: %v", err)
	}
	return NewService(store), store, circle.ID
}

func TestCreateValidation(t *testing.T) {
	svc, _, circleID := setupService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"normal content", "done with my workout", nil},
		{"empty content", "", ErrEmptyContent},
		{"whitespace only", "   \t\n", ErrEmptyContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := svc.Create(ctx, circleID, "author", tt.content)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Create error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if msg.ID == "" || msg.CircleID != circleID || msg.AuthorID != "author" {
				t.Errorf("created message = %+v", msg)
			}
			if msg.Edited || msg.Deleted {
				t.Error("new message should not be edited or deleted")
			}
		})
	}
}

func TestEditAuthorOnly(t *testing.T) {
	svc, _, circleID := setupService(t)
	ctx := context.Background()

	msg, err := svc.Create(ctx, circleID, "author", "original")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Edit(ctx, msg.ID, "intruder", "hijacked"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("non-author edit error = %v, want ErrNotAuthorized", err)
	}
	if _, err := svc.Edit(ctx, msg.ID, "author", "  "); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("blank edit error = %v, want ErrEmptyContent", err)
	}
	if _, err := svc.Edit(ctx, "missing", "author", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing message edit error = %v, want ErrNotFound", err)
	}

	edited, err := svc.Edit(ctx, msg.ID, "author", "corrected")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if edited.Content != "corrected" || !edited.Edited {
		t.Errorf("edited message = %+v", edited)
	}
}

func TestDeleteIsSoftAndKeepsReactions(t *testing.T) {
	svc, store, circleID := setupService(t)
	ctx := context.Background()

	msg, err := svc.Create(ctx, circleID, "author", "to be removed")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.AddReaction(ctx, msg.ID, "fan", "👍"); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}

	if _, err := svc.Delete(ctx, msg.ID, "intruder"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("non-author delete error = %v, want ErrNotAuthorized", err)
	}

	deleted, err := svc.Delete(ctx, msg.ID, "author")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted.Deleted || deleted.Content != "" {
		t.Errorf("deleted message = %+v, want Deleted with cleared content", deleted)
	}

	// The record survives and its reactions stay addressable.
	if _, err := store.GetMessage(ctx, msg.ID); err != nil {
		t.Errorf("soft-deleted message gone from store: %v", err)
	}
	reactions, err := svc.Reactions(ctx, msg.ID)
	if err != nil {
		t.Fatalf("Reactions: %v", err)
	}
	if len(reactions) != 1 {
		t.Errorf("got %d reactions after delete, want 1", len(reactions))
	}
}

func TestReactionRules(t *testing.T) {
	svc, _, circleID := setupService(t)
	ctx := context.Background()

	msg, err := svc.Create(ctx, circleID, "author", "react to me")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.AddReaction(ctx, msg.ID, "fan", ""); !errors.Is(err, ErrMissingEmoji) {
		t.Errorf("empty emoji error = %v, want ErrMissingEmoji", err)
	}
	if _, err := svc.AddReaction(ctx, "missing", "fan", "🔥"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing message error = %v, want ErrNotFound", err)
	}

	// The same triple twice leaves one reaction.
	for i := 0; i < 2; i++ {
		if _, err := svc.AddReaction(ctx, msg.ID, "fan", "🔥"); err != nil {
			t.Fatalf("AddReaction %d: %v", i, err)
		}
	}
	reactions, err := svc.Reactions(ctx, msg.ID)
	if err != nil {
		t.Fatalf("Reactions: %v", err)
	}
	if len(reactions) != 1 {
		t.Fatalf("got %d reactions, want 1", len(reactions))
	}

	// Anyone may remove their own reaction; removing twice still succeeds.
	for i := 0; i < 2; i++ {
		if err := svc.RemoveReaction(ctx, msg.ID, "fan", "🔥"); err != nil {
			t.Fatalf("RemoveReaction %d: %v", i, err)
		}
	}
	reactions, err = svc.Reactions(ctx, msg.ID)
	if err != nil {
		t.Fatalf("Reactions after remove: %v", err)
	}
	if len(reactions) != 0 {
		t.Errorf("got %d reactions after remove, want 0", len(reactions))
	}
}

func TestCircleMessagesMembershipGated(t *testing.T) {
	svc, store, circleID := setupService(t)
	ctx := context.Background()

	for _, content := range []string{"one", "two"} {
		if _, err := svc.Create(ctx, circleID, "author", content); err != nil {
			t.Fatalf("Create %q: %v", content, err)
		}
	}

	if _, err := svc.CircleMessages(ctx, circleID, "outsider"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("outsider read error = %v, want ErrNotAuthorized", err)
	}

	if err := store.AddCircleMember(ctx, circleID, "outsider"); err != nil {
		t.Fatalf("AddCircleMember: %v", err)
	}
	msgs, err := svc.CircleMessages(ctx, circleID, "outsider")
	if err != nil {
		t.Fatalf("CircleMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "one" || msgs[1].Content != "two" {
		t.Errorf("messages = %+v, want ascending creation order", msgs)
	}
}
