// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package chat

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/circle-app/circle/internal/models"
)

// Frame type tags for WebSocket communication.
const (
	FrameTypeChat             = "chat"
	FrameTypeRefreshCircles   = "refresh_circles"
	FrameTypeCirclesRefreshed = "circles_refreshed"
	FrameTypeError            = "error"
	FrameTypeNotification     = "notification"
	FrameTypePing             = "ping"
	FrameTypePong             = "pong"
)

// Frame parsing errors.
var (
	// ErrUnknownFrameType is returned for a frame whose type tag is not part
	// of the protocol.
	ErrUnknownFrameType = errors.New("unknown frame type")

	// ErrMissingCircleID is returned for a chat frame without a circle id.
	ErrMissingCircleID = errors.New("circleId is required")
)

// Inbound is the closed set of frames clients may send.
type Inbound interface {
	isInbound()
}

// ChatFrame posts a message to a circle.
type ChatFrame struct {
	CircleID string
	Content  string
}

// RefreshCirclesFrame asks the server to rebuild the connection's membership
// cache.
type RefreshCirclesFrame struct{}

// PingFrame is an application-level keepalive, answered with a pong frame.
type PingFrame struct{}

func (*ChatFrame) isInbound()           {}
func (*RefreshCirclesFrame) isInbound() {}
func (*PingFrame) isInbound()           {}

// ParseInbound decodes a raw frame into the inbound tagged union.
// Unknown type tags yield ErrUnknownFrameType rather than being silently
// ignored.
func ParseInbound(data []byte) (Inbound, error) {
	var envelope struct {
		Type     string `json:"type"`
		CircleID string `json:"circleId"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch envelope.Type {
	case FrameTypeChat:
		if envelope.CircleID == "" {
			return nil, ErrMissingCircleID
		}
		return &ChatFrame{CircleID: envelope.CircleID, Content: envelope.Content}, nil
	case FrameTypeRefreshCircles:
		return &RefreshCirclesFrame{}, nil
	case FrameTypePing:
		return &PingFrame{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrameType, envelope.Type)
	}
}

// Outbound is the closed set of frames the server may send.
type Outbound interface {
	FrameType() string
}

// ChatDelivery carries a persisted message to a circle member.
type ChatDelivery struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"message"`
}

// NewChatDelivery wraps a persisted message for delivery.
func NewChatDelivery(msg *models.Message) *ChatDelivery {
	return &ChatDelivery{Type: FrameTypeChat, Message: msg}
}

// FrameType implements Outbound.
func (f *ChatDelivery) FrameType() string { return FrameTypeChat }

// CirclesRefreshed acknowledges an explicit membership cache rebuild.
type CirclesRefreshed struct {
	Type string `json:"type"`
}

// NewCirclesRefreshed builds a refresh acknowledgment.
func NewCirclesRefreshed() *CirclesRefreshed {
	return &CirclesRefreshed{Type: FrameTypeCirclesRefreshed}
}

// FrameType implements Outbound.
func (f *CirclesRefreshed) FrameType() string { return FrameTypeCirclesRefreshed }

// ErrorFrame reports a frame-level failure to the originating connection.
type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewErrorFrame builds an error frame with the given message.
func NewErrorFrame(message string) *ErrorFrame {
	return &ErrorFrame{Type: FrameTypeError, Error: message}
}

// FrameType implements Outbound.
func (f *ErrorFrame) FrameType() string { return FrameTypeError }

// NotificationPush carries a notification to one of its target user's live
// connections.
type NotificationPush struct {
	Type string               `json:"type"`
	Data *models.Notification `json:"data"`
}

// NewNotificationPush wraps a notification for live delivery.
func NewNotificationPush(n *models.Notification) *NotificationPush {
	return &NotificationPush{Type: FrameTypeNotification, Data: n}
}

// FrameType implements Outbound.
func (f *NotificationPush) FrameType() string { return FrameTypeNotification }

// Pong answers an application-level ping.
type Pong struct {
	Type string `json:"type"`
}

// NewPong builds a pong frame.
func NewPong() *Pong {
	return &Pong{Type: FrameTypePong}
}

// FrameType implements Outbound.
func (f *Pong) FrameType() string { return FrameTypePong }
