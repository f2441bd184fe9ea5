// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package chat

import (
	"errors"
	"testing"
	"time"

	"github.com/circle-app/circle/internal/models"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Inbound
		wantErr error
	}{
		{
			name: "chat frame",
			data: `{"type":"chat","circleId":"c1","content":"hello"}`,
			want: &ChatFrame{CircleID: "c1", Content: "hello"},
		},
		{
			name:    "chat frame without circle id",
			data:    `{"type":"chat","content":"hello"}`,
			wantErr: ErrMissingCircleID,
		},
		{
			name: "refresh circles frame",
			data: `{"type":"refresh_circles"}`,
			want: &RefreshCirclesFrame{},
		},
		{
			name: "ping frame",
			data: `{"type":"ping"}`,
			want: &PingFrame{},
		},
		{
			name:    "unknown type",
			data:    `{"type":"subscribe"}`,
			wantErr: ErrUnknownFrameType,
		},
		{
			name:    "empty type",
			data:    `{"content":"hello"}`,
			wantErr: ErrUnknownFrameType,
		},
		{
			name:    "malformed JSON",
			data:    `{"type":`,
			wantErr: errAny,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInbound([]byte(tt.data))

			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("ParseInbound(%q) succeeded, want error", tt.data)
				}
				if tt.wantErr != errAny && !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseInbound(%q) error = %v, want %v", tt.data, err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseInbound(%q) error: %v", tt.data, err)
			}

			switch want := tt.want.(type) {
			case *ChatFrame:
				frame, ok := got.(*ChatFrame)
				if !ok {
					t.Fatalf("got %T, want *ChatFrame", got)
				}
				if frame.CircleID != want.CircleID || frame.Content != want.Content {
					t.Errorf("got %+v, want %+v", frame, want)
				}
			case *RefreshCirclesFrame:
				if _, ok := got.(*RefreshCirclesFrame); !ok {
					t.Fatalf("got %T, want *RefreshCirclesFrame", got)
				}
			case *PingFrame:
				if _, ok := got.(*PingFrame); !ok {
					t.Fatalf("got %T, want *PingFrame", got)
				}
			}
		})
	}
}

// errAny matches any non-nil error in the table above.
var errAny = errors.New("any error")

func TestOutboundFrameTypes(t *testing.T) {
	msg := &models.Message{ID: "m1", CircleID: "c1"}
	n := &models.Notification{ID: "n1", CreatedAt: time.Now()}

	tests := []struct {
		frame Outbound
		want  string
	}{
		{NewChatDelivery(msg), FrameTypeChat},
		{NewCirclesRefreshed(), FrameTypeCirclesRefreshed},
		{NewErrorFrame("boom"), FrameTypeError},
		{NewNotificationPush(n), FrameTypeNotification},
		{NewPong(), FrameTypePong},
	}

	for _, tt := range tests {
		if got := tt.frame.FrameType(); got != tt.want {
			t.Errorf("%T.FrameType() = %q, want %q", tt.frame, got, tt.want)
		}
	}
}

func TestNewChatDeliveryCarriesMessage(t *testing.T) {
	msg := &models.Message{ID: "m1", CircleID: "c1", AuthorID: "u1", Content: "hi"}
	frame := NewChatDelivery(msg)

	if frame.Message != msg {
		t.Error("delivery frame does not carry the original message")
	}
	if frame.Type != FrameTypeChat {
		t.Errorf("delivery frame type = %q, want %q", frame.Type, FrameTypeChat)
	}
}
