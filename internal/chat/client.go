// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/circle-app/circle/internal/logging"
	"github.com/circle-app/circle/internal/metrics"
	"github.com/circle-app/circle/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// clientIDCounter generates unique, monotonically increasing IDs for clients,
// giving broadcasts a stable iteration order.
var clientIDCounter atomic.Uint64

// Client is an authenticated live connection: the socket handle, the resolved
// user identity, and a point-in-time snapshot of the user's circle
// memberships. The snapshot is explicitly allowed to go stale; it is
// corrected lazily by delivery-time re-verification or an explicit
// refresh_circles request.
type Client struct {
	id     uint64
	hub    *Hub
	conn   *websocket.Conn
	userID string

	// send carries outbound frames to the single writer goroutine.
	send chan Outbound

	// deliveries carries persisted messages awaiting per-recipient
	// membership re-verification, in persistence order.
	deliveries chan *models.Message

	// sendMu guards closed so concurrent enqueuers never hit a closed channel.
	sendMu sync.RWMutex
	closed bool

	// circleMu guards the membership snapshot.
	circleMu sync.RWMutex
	circles  map[string]struct{}
}

// newClient creates a client for an authenticated connection.
func newClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		id:         clientIDCounter.Add(1),
		hub:        hub,
		conn:       conn,
		userID:     userID,
		send:       make(chan Outbound, hub.cfg.SendBuffer),
		deliveries: make(chan *models.Message, hub.cfg.DeliveryBuffer),
		circles:    make(map[string]struct{}),
	}
}

// UserID returns the authenticated user id for this connection.
func (c *Client) UserID() string {
	return c.userID
}

// inCircle reports whether the cached membership snapshot contains the circle.
func (c *Client) inCircle(circleID string) bool {
	c.circleMu.RLock()
	defer c.circleMu.RUnlock()
	_, ok := c.circles[circleID]
	return ok
}

// setCircles replaces the membership snapshot.
func (c *Client) setCircles(circleIDs []string) {
	next := make(map[string]struct{}, len(circleIDs))
	for _, id := range circleIDs {
		next[id] = struct{}{}
	}

	c.circleMu.Lock()
	c.circles = next
	c.circleMu.Unlock()
}

// circleCount returns the size of the membership snapshot.
func (c *Client) circleCount() int {
	c.circleMu.RLock()
	defer c.circleMu.RUnlock()
	return len(c.circles)
}

// enqueue offers an outbound frame to the writer goroutine without blocking.
// Returns false if the client is closed or its send buffer is full.
func (c *Client) enqueue(frame Outbound) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// queueDelivery offers a persisted message to the verification queue without
// blocking. Only the hub calls this, under its registry lock.
func (c *Client) queueDelivery(msg *models.Message) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.deliveries <- msg:
		return true
	default:
		return false
	}
}

// closeQueues marks the client closed and closes both channels. Called
// exactly once, by the hub, while the client is being removed from the
// registry.
func (c *Client) closeQueues() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	close(c.deliveries)
}

// Start begins the client's goroutines: reading frames, writing frames, and
// verifying queued deliveries.
func (c *Client) Start() {
	go c.writePump()
	go c.verifyPump()
	go c.readPump()
}

// readPump reads frames from the socket and hands them to the hub.
// One frame per iteration; a bad frame produces an error frame for this
// connection only and never closes the socket.
func (c *Client) readPump() {
	defer func() {
		c.hub.Remove(c)
		_ = c.conn.Close() // best-effort cleanup
	}()

	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.Error().Err(err).Msg("unexpected websocket close error")
			}
			break
		}

		frame, err := ParseInbound(data)
		if err != nil {
			metrics.WSFramesTotal.WithLabelValues("invalid").Inc()
			c.enqueue(NewErrorFrame(err.Error()))
			continue
		}

		c.hub.HandleFrame(context.Background(), c, frame)
	}
}

// writePump is the sole writer to the socket. It drains the send queue and
// keeps the connection alive with protocol-level pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // best-effort cleanup
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the queue
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && err != websocket.ErrCloseSent {
					logging.Error().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteJSON(frame); err != nil {
				logging.Error().Err(err).Msg("failed to write frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// verifyPump re-verifies membership against storage for each queued message
// before delivering it, so a recipient whose cache says they are in the
// circle but who actually left never receives it. Each client verifies
// independently; a slow storage call here stalls only this recipient.
func (c *Client) verifyPump() {
	for msg := range c.deliveries {
		member, err := c.hub.store.IsCircleMember(context.Background(), msg.CircleID, c.userID)
		if err != nil {
			logging.Warn().Err(err).
				Str("user_id", c.userID).
				Str("circle_id", msg.CircleID).
				Msg("membership re-verification failed, skipping delivery")
			continue
		}

		if !member {
			// Stale cache: correct it out-of-band, do not deliver.
			metrics.BroadcastStaleSkips.Inc()
			c.hub.scheduleRefresh(c, refreshTriggerStaleRecipient)
			continue
		}

		if c.enqueue(NewChatDelivery(msg)) {
			metrics.BroadcastDeliveries.Inc()
		} else {
			metrics.BroadcastDrops.Inc()
			logging.Warn().Str("user_id", c.userID).Msg("send buffer full, dropping chat delivery")
		}
	}
}
