// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/circle-app/circle/internal/auth"
	"github.com/circle-app/circle/internal/models"
)

// dialWS opens a WebSocket connection against the test server, optionally
// authenticated with the given session.
func dialWS(t *testing.T, env *testEnv, session *auth.Session) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(env.server.URL, "http", "ws", 1) + "/ws"
	header := http.Header{}
	if session != nil {
		header.Set("Cookie", "connect.sid="+session.ID)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// seedWSUser creates a user plus a live session directly in the stores.
func seedWSUser(t *testing.T, env *testEnv, username string) (*models.User, *auth.Session) {
	t.Helper()

	ctx := context.Background()
	user := &models.User{ID: uuid.NewString(), Username: username, CreatedAt: time.Now().UTC()}
	if err := env.store.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}

	session := auth.NewSession(user.ID, username, time.Hour)
	if err := env.sessions.Create(ctx, session); err != nil {
		t.Fatalf("create session for %s: %v", username, err)
	}
	return user, session
}

func readWSFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}

	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode frame %s: %v", data, err)
	}
	return frame
}

func TestWebSocketRejectsUnauthenticated(t *testing.T) {
	env := setupEnv(t)
	conn := dialWS(t, env, nil)

	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("expected close, got a frame")
	}

	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected close error, got %v", err)
	}
	if closeErr.Code != websocket.ClosePolicyViolation {
		t.Errorf("close code = %d, want 1008", closeErr.Code)
	}
	if closeErr.Text != "Authentication required" {
		t.Errorf("close text = %q", closeErr.Text)
	}
}

func TestWebSocketChatFanout(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	alice, aliceSession := seedWSUser(t, env, "alice")
	bob, bobSession := seedWSUser(t, env, "bob")
	_, eveSession := seedWSUser(t, env, "eve")

	circle := &models.Circle{ID: uuid.NewString(), Name: "night-owls", CreatorID: alice.ID, CreatedAt: time.Now().UTC()}
	if err := env.store.CreateCircle(ctx, circle); err != nil {
		t.Fatalf("create circle: %v", err)
	}
	if err := env.store.AddCircleMember(ctx, circle.ID, bob.ID); err != nil {
		t.Fatalf("add bob: %v", err)
	}

	aliceConn := dialWS(t, env, aliceSession)
	bobConn := dialWS(t, env, bobSession)
	eveConn := dialWS(t, env, eveSession)

	// Connections register asynchronously after the upgrade response.
	deadline := time.Now().Add(3 * time.Second)
	for env.hub.ClientCount() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d clients registered", env.hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}

	send := map[string]string{"type": "chat", "circleId": circle.ID, "content": "anyone awake?"}
	if err := bobConn.WriteJSON(send); err != nil {
		t.Fatalf("write chat frame: %v", err)
	}

	for name, conn := range map[string]*websocket.Conn{"alice": aliceConn, "bob": bobConn} {
		frame := readWSFrame(t, conn)
		if frame["type"] != "chat" {
			t.Fatalf("%s got frame type %v", name, frame["type"])
		}
		msg, ok := frame["message"].(map[string]any)
		if !ok {
			t.Fatalf("%s frame carries no message: %v", name, frame)
		}
		if msg["content"] != "anyone awake?" || msg["authorId"] != bob.ID {
			t.Errorf("%s got message %v", name, msg)
		}
	}

	// Eve is not a member and hears nothing.
	if err := eveConn.SetReadDeadline(time.Now().Add(300 * time.Millisecond)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	if _, data, err := eveConn.ReadMessage(); err == nil {
		t.Errorf("non-member received frame: %s", data)
	}

	// The message was persisted.
	msgs, err := env.store.GetCircleMessages(ctx, circle.ID)
	if err != nil {
		t.Fatalf("GetCircleMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "anyone awake?" {
		t.Errorf("persisted messages = %+v", msgs)
	}
}

func TestWebSocketNonMemberSendRejected(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	alice, _ := seedWSUser(t, env, "alice")
	_, eveSession := seedWSUser(t, env, "eve")

	circle := &models.Circle{ID: uuid.NewString(), Name: "closed", CreatorID: alice.ID, CreatedAt: time.Now().UTC()}
	if err := env.store.CreateCircle(ctx, circle); err != nil {
		t.Fatalf("create circle: %v", err)
	}

	eveConn := dialWS(t, env, eveSession)
	deadline := time.Now().Add(3 * time.Second)
	for env.hub.ClientCount() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := eveConn.WriteJSON(map[string]string{"type": "chat", "circleId": circle.ID, "content": "hi"}); err != nil {
		t.Fatalf("write chat frame: %v", err)
	}

	frame := readWSFrame(t, eveConn)
	if frame["type"] != "error" {
		t.Fatalf("frame type = %v, want error", frame["type"])
	}
	if frame["error"] != "Not a member of this circle" {
		t.Errorf("error text = %v", frame["error"])
	}

	// Nothing was persisted.
	msgs, err := env.store.GetCircleMessages(ctx, circle.ID)
	if err != nil {
		t.Fatalf("GetCircleMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("rejected message persisted: %+v", msgs)
	}
}

func TestWebSocketRefreshAndPing(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	alice, aliceSession := seedWSUser(t, env, "alice")
	bob, bobSession := seedWSUser(t, env, "bob")

	circle := &models.Circle{ID: uuid.NewString(), Name: "joinable", CreatorID: alice.ID, CreatedAt: time.Now().UTC()}
	if err := env.store.CreateCircle(ctx, circle); err != nil {
		t.Fatalf("create circle: %v", err)
	}

	aliceConn := dialWS(t, env, aliceSession)
	bobConn := dialWS(t, env, bobSession)
	deadline := time.Now().Add(3 * time.Second)
	for env.hub.ClientCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("clients never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Bob joins after connecting; his cached roster is stale until refresh.
	if err := env.store.AddCircleMember(ctx, circle.ID, bob.ID); err != nil {
		t.Fatalf("add bob: %v", err)
	}
	if err := bobConn.WriteJSON(map[string]string{"type": "refresh_circles"}); err != nil {
		t.Fatalf("write refresh frame: %v", err)
	}
	if frame := readWSFrame(t, bobConn); frame["type"] != "circles_refreshed" {
		t.Fatalf("refresh ack type = %v", frame["type"])
	}

	// After the refresh Bob receives circle traffic.
	if err := aliceConn.WriteJSON(map[string]string{"type": "chat", "circleId": circle.ID, "content": "welcome"}); err != nil {
		t.Fatalf("write chat frame: %v", err)
	}
	frame := readWSFrame(t, bobConn)
	if frame["type"] != "chat" {
		t.Fatalf("frame type = %v, want chat", frame["type"])
	}

	// Application-level ping.
	if err := bobConn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("write ping frame: %v", err)
	}
	if frame := readWSFrame(t, bobConn); frame["type"] != "pong" {
		t.Errorf("ping answered with %v", frame["type"])
	}

	// Unknown frame types come back as error frames without dropping the
	// connection.
	if err := bobConn.WriteJSON(map[string]string{"type": "subscribe"}); err != nil {
		t.Fatalf("write unknown frame: %v", err)
	}
	if frame := readWSFrame(t, bobConn); frame["type"] != "error" {
		t.Errorf("unknown frame answered with %v", frame["type"])
	}
}
