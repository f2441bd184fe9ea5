// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package chat

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/circle-app/circle/internal/logging"
	"github.com/circle-app/circle/internal/message"
	"github.com/circle-app/circle/internal/metrics"
	"github.com/circle-app/circle/internal/models"
)

// User-facing error frame texts. Internal detail never leaks to clients.
const (
	errNotAMember   = "Not a member of this circle"
	errInternal     = "Internal server error"
	errEmptyContent = "Message content cannot be empty"
)

// Membership refresh triggers, used as metric labels.
const (
	refreshTriggerAdmit          = "admit"
	refreshTriggerClientRequest  = "client_request"
	refreshTriggerSenderRejected = "sender_rejected"
	refreshTriggerStaleRecipient = "stale_recipient"
)

// MembershipStore is the slice of storage the hub needs for membership
// ground truth.
type MembershipStore interface {
	IsCircleMember(ctx context.Context, circleID, userID string) (bool, error)
	GetUserCircles(ctx context.Context, userID string) ([]*models.Circle, error)
}

// MessageCreator persists chat messages. Satisfied by *message.Service.
type MessageCreator interface {
	Create(ctx context.Context, circleID, authorID, content string) (*models.Message, error)
}

// Config holds hub tuning parameters.
type Config struct {
	// SendBuffer is the per-connection outbound frame buffer size.
	SendBuffer int

	// DeliveryBuffer is the per-connection pending-verification queue size.
	DeliveryBuffer int

	// MaxMessageSize caps inbound frame size in bytes.
	MaxMessageSize int64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		SendBuffer:     256,
		DeliveryBuffer: 256,
		MaxMessageSize: 64 * 1024,
	}
}

// Hub is the connection registry and fan-out engine. It maintains the
// authoritative in-process set of live, authenticated connections and
// routes persisted messages to every connection whose (re-verified)
// membership includes the target circle.
//
// The registry is the only mutable shared state in the chat core; all
// durable data lives behind the storage interfaces, so the process can be
// restarted losing nothing but live-connection metadata.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	store    MembershipStore
	messages MessageCreator
	cfg      Config

	// circleLocks serializes persist-then-broadcast per circle so fan-out
	// initiation order matches persistence order within a circle. Senders to
	// different circles never contend.
	circleLockMu sync.Mutex
	circleLocks  map[string]*sync.Mutex
}

// NewHub creates a hub on the given membership source and message creator.
func NewHub(store MembershipStore, messages MessageCreator, cfg Config) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultConfig().SendBuffer
	}
	if cfg.DeliveryBuffer <= 0 {
		cfg.DeliveryBuffer = DefaultConfig().DeliveryBuffer
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultConfig().MaxMessageSize
	}
	return &Hub{
		clients:     make(map[*Client]struct{}),
		store:       store,
		messages:    messages,
		cfg:         cfg,
		circleLocks: make(map[string]*sync.Mutex),
	}
}

// Admit registers an authenticated connection: the membership cache is
// primed synchronously, the client joins the registry, and its goroutines
// start. A storage failure while priming yields an empty cache rather than
// a rejected connection; the cache self-heals on the next refresh.
func (h *Hub) Admit(ctx context.Context, c *Client) {
	h.primeMembership(ctx, c, refreshTriggerAdmit)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	logging.Info().
		Str("user_id", c.userID).
		Int("circles", c.circleCount()).
		Int("total_clients", total).
		Msg("websocket client connected")

	c.Start()
}

// NewClient creates a client for an upgraded, session-authenticated
// connection. The caller passes it to Admit.
func (h *Hub) NewClient(conn *websocket.Conn, userID string) *Client {
	return newClient(h, conn, userID)
}

// Remove drops a connection from the registry and closes its queues.
// Idempotent; called from the read pump on socket close or error and from
// shutdown.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		c.closeQueues()
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		metrics.WSConnections.Dec()
		logging.Info().
			Str("user_id", c.userID).
			Int("total_clients", total).
			Msg("websocket client disconnected")
	}
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleFrame processes one inbound frame from a connection. Any failure,
// including a panic, is reported back to the originating connection as an
// error frame; it never crashes the process or touches other connections.
func (h *Hub) HandleFrame(ctx context.Context, c *Client, frame Inbound) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Str("user_id", c.userID).Msg("panic while processing frame")
			c.enqueue(NewErrorFrame(errInternal))
		}
	}()

	switch f := frame.(type) {
	case *ChatFrame:
		metrics.WSFramesTotal.WithLabelValues(FrameTypeChat).Inc()
		h.handleChat(ctx, c, f)

	case *RefreshCirclesFrame:
		metrics.WSFramesTotal.WithLabelValues(FrameTypeRefreshCircles).Inc()
		h.primeMembership(ctx, c, refreshTriggerClientRequest)
		c.enqueue(NewCirclesRefreshed())

	case *PingFrame:
		metrics.WSFramesTotal.WithLabelValues(FrameTypePing).Inc()
		c.enqueue(NewPong())
	}
}

// handleChat runs the fan-out state machine for one chat frame: sender
// membership check against storage (the sender's own access is authoritative
// at write time, never the cache), persist, then broadcast.
func (h *Hub) handleChat(ctx context.Context, c *Client, f *ChatFrame) {
	member, err := h.store.IsCircleMember(ctx, f.CircleID, c.userID)
	if err != nil {
		logging.Error().Err(err).Str("circle_id", f.CircleID).Msg("sender membership check failed")
		c.enqueue(NewErrorFrame(errInternal))
		return
	}
	if !member {
		// Their cache was wrong about this circle; fix it while rejecting.
		h.primeMembership(ctx, c, refreshTriggerSenderRejected)
		c.enqueue(NewErrorFrame(errNotAMember))
		return
	}

	if _, err := h.CreateAndBroadcast(ctx, f.CircleID, c.userID, f.Content); err != nil {
		if errors.Is(err, message.ErrEmptyContent) {
			c.enqueue(NewErrorFrame(errEmptyContent))
			return
		}
		logging.Error().Err(err).Str("circle_id", f.CircleID).Msg("failed to persist chat message")
		c.enqueue(NewErrorFrame(errInternal))
	}
}

// CreateAndBroadcast persists a message and initiates fan-out to every
// registered connection whose cached membership includes the circle.
// Persist and fan-out initiation happen under a per-circle lock so that,
// within a circle, delivery order matches persistence order for every
// recipient. The caller must have verified the author's membership.
func (h *Hub) CreateAndBroadcast(ctx context.Context, circleID, authorID, content string) (*models.Message, error) {
	lock := h.circleLock(circleID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := h.messages.Create(ctx, circleID, authorID, content)
	if err != nil {
		return nil, err
	}
	metrics.ChatMessagesTotal.Inc()

	h.broadcast(msg)
	return msg, nil
}

// broadcast enqueues the message to every candidate recipient's verification
// queue. Enqueueing is non-blocking: recipients verify and deliver on their
// own goroutines, so one slow recipient never delays the rest.
func (h *Hub) broadcast(msg *models.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.sortedClientsLocked() {
		if !c.inCircle(msg.CircleID) {
			continue
		}
		if !c.queueDelivery(msg) {
			metrics.BroadcastDrops.Inc()
			logging.Warn().Str("user_id", c.userID).Msg("delivery queue full, dropping message")
		}
	}
}

// NotifyUser delivers a notification to every open connection of the target
// user and returns the number of connections reached. Callable from REST
// handlers that know nothing about WebSocket internals; a user with no open
// connections makes this a no-op (the notification stays durably stored).
func (h *Hub) NotifyUser(userID string, n *models.Notification) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, c := range h.sortedClientsLocked() {
		if c.userID != userID {
			continue
		}
		if c.enqueue(NewNotificationPush(n)) {
			delivered++
		}
	}
	if delivered > 0 {
		metrics.NotificationPushes.Add(float64(delivered))
	}
	return delivered
}

// sortedClientsLocked snapshots the registry in client-id order for
// deterministic iteration. Caller holds at least a read lock.
func (h *Hub) sortedClientsLocked() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// primeMembership replaces the client's membership cache from storage.
// A storage failure leaves an empty set rather than crashing the
// connection; membership self-heals on the next refresh.
func (h *Hub) primeMembership(ctx context.Context, c *Client, trigger string) {
	metrics.MembershipRefreshes.WithLabelValues(trigger).Inc()

	circles, err := h.store.GetUserCircles(ctx, c.userID)
	if err != nil {
		logging.Warn().Err(err).Str("user_id", c.userID).Msg("membership lookup failed, caching empty set")
		c.setCircles(nil)
		return
	}

	ids := make([]string, 0, len(circles))
	for _, circle := range circles {
		ids = append(ids, circle.ID)
	}
	c.setCircles(ids)
}

// scheduleRefresh rebuilds a client's membership cache asynchronously, so
// delivery verification for other messages and recipients is never blocked
// on the refresh.
func (h *Hub) scheduleRefresh(c *Client, trigger string) {
	go h.primeMembership(context.Background(), c, trigger)
}

// circleLock returns the per-circle fan-out lock, creating it on first use.
func (h *Hub) circleLock(circleID string) *sync.Mutex {
	h.circleLockMu.Lock()
	defer h.circleLockMu.Unlock()

	lock, ok := h.circleLocks[circleID]
	if !ok {
		lock = &sync.Mutex{}
		h.circleLocks[circleID] = lock
	}
	return lock
}

// Serve runs the hub under supervision (suture.Service). The hub itself is
// event-driven through its methods; Serve only waits for shutdown and then
// closes every live client so a supervisor restart never leaves orphaned
// connections.
func (h *Hub) Serve(ctx context.Context) error {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.sortedClientsLocked()
	for _, c := range clients {
		delete(h.clients, c)
		c.closeQueues()
	}
	h.mu.Unlock()

	metrics.WSConnections.Sub(float64(len(clients)))
	logging.Info().
		Str("component", "chat-hub").
		Str("reason", shutdownReason(ctx)).
		Int("clients_closed", len(clients)).
		Msg("chat hub stopped")

	return ctx.Err()
}

func (h *Hub) String() string { return "chat-hub" }

// shutdownReason labels the shutdown trigger for log filtering.
func shutdownReason(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "context_deadline"
	}
	return "context_canceled"
}
