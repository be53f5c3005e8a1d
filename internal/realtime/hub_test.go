package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/pulsemetrics/pulseboard/internal/engine"
)

func dialTestHub(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(userID, w, r)
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return hub.ClientCount(userID) == 1
	}, 2*time.Second, 10*time.Millisecond)
	return conn
}

func TestHubBroadcastToUser(t *testing.T) {
	hub := NewHub(nil)
	conn := dialTestHub(t, hub, "alice")

	hub.BroadcastToUser("alice", Message{Event: "feed.changed", Data: map[string]any{"unread": 3}})

	var msg Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "feed.changed", msg.Event)

	data, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	require.EqualValues(t, 3, data["unread"])
}

func TestHubIsolatesUsers(t *testing.T) {
	hub := NewHub(nil)
	alice := dialTestHub(t, hub, "alice")
	_ = dialTestHub(t, hub, "bob")

	hub.BroadcastToUser("bob", Message{Event: "feed.changed"})
	hub.BroadcastToUser("alice", Message{Event: "for.alice"})

	var msg Message
	require.NoError(t, alice.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, alice.ReadJSON(&msg))
	require.Equal(t, "for.alice", msg.Event, "alice must never see bob's events")
}

func TestHubUnregistersOnClose(t *testing.T) {
	hub := NewHub(nil)
	conn := dialTestHub(t, hub, "alice")

	conn.Close()
	require.Eventually(t, func() bool {
		return hub.ClientCount("alice") == 0
	}, 2*time.Second, 10*time.Millisecond)

	// Broadcasting to a user with no clients is a no-op.
	hub.BroadcastToUser("alice", Message{Event: "feed.changed"})
}

func TestBroadcastDropsStalledClientWithoutBlocking(t *testing.T) {
	hub := NewHub(nil)

	serverConn := make(chan *websocket.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := hub.upgrader.Upgrade(w, r, nil)
		if err == nil {
			serverConn <- conn
		}
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	dialed, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { dialed.Close() })

	var socket *websocket.Conn
	select {
	case socket = <-serverConn:
	case <-time.After(2 * time.Second):
		t.Fatal("server side of the websocket never arrived")
	}

	// No write loop drains this client, so a zero-capacity send channel
	// makes the very first broadcast hit backpressure.
	client := &connection{hub: hub, socket: socket, userID: "alice", send: make(chan Message)}
	hub.register(client)

	done := make(chan struct{})
	go func() {
		hub.BroadcastToUser("alice", Message{Event: "feed.changed"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a stalled client")
	}

	require.Eventually(t, func() bool {
		return hub.ClientCount("alice") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBridgePushesFeedUpdates(t *testing.T) {
	hub := NewHub(nil)
	conn := dialTestHub(t, hub, "alice")

	svc := engine.NewService()
	defer svc.Close()
	unsubscribe := svc.Subscribe(NewBridge("alice", svc, hub))
	defer unsubscribe()

	_, err := svc.Trigger(context.Background(), engine.Notification{
		Type:    engine.TypeInfo,
		Title:   "hello",
		Message: "body",
	})
	require.NoError(t, err)

	var msg Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "feed.changed", msg.Event)

	data, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	require.EqualValues(t, 1, data["unread"])
}
