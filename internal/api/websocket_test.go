package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hostbridge/hostbridge-core/internal/bridge"
	"github.com/hostbridge/hostbridge-core/internal/entity"
)

// dialWebSocket connects to the test server's WebSocket endpoint and waits
// for the hub to register the client.
func dialWebSocket(t *testing.T, srv *Server, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered with hub")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return ws
}

func TestWebSocket_ReceivesBridgeEvents(t *testing.T) {
	srv, _ := testServer(t, "")
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	ws := dialWebSocket(t, srv, ts, "")

	// Clients are subscribed to the bridge event channel on connect.
	srv.hub.Forward(bridge.Event{
		EntityID:       "sync-task",
		Type:           entity.EventTrigger,
		CorrelationTag: "cb-7",
		Timestamp:      time.Now().UTC(),
	})

	//nolint:errcheck // Deadline on a live test connection
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read event: %v", err)
	}

	if msg.Type != WSTypeEvent {
		t.Errorf("type = %q, want %q", msg.Type, WSTypeEvent)
	}
	if msg.EventType != ChannelBridgeEvent {
		t.Errorf("event_type = %q, want %q", msg.EventType, ChannelBridgeEvent)
	}

	payload, ok := msg.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload = %T, want object", msg.Payload)
	}
	if payload["entity_id"] != "sync-task" {
		t.Errorf("entity_id = %v, want sync-task", payload["entity_id"])
	}
	if payload["correlation_tag"] != "cb-7" {
		t.Errorf("correlation_tag = %v, want cb-7", payload["correlation_tag"])
	}
}

func TestWebSocket_PingPong(t *testing.T) {
	srv, _ := testServer(t, "")
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	ws := dialWebSocket(t, srv, ts, "")

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "p-1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	//nolint:errcheck // Deadline on a live test connection
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read pong: %v", err)
	}

	if msg.Type != WSTypePong {
		t.Errorf("type = %q, want %q", msg.Type, WSTypePong)
	}
	if msg.ID != "p-1" {
		t.Errorf("id = %q, want p-1", msg.ID)
	}
}

func TestWebSocket_Unsubscribe(t *testing.T) {
	srv, _ := testServer(t, "")
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	ws := dialWebSocket(t, srv, ts, "")

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeUnsubscribe,
		ID:      "u-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelBridgeEvent}},
	}); err != nil {
		t.Fatalf("write unsubscribe: %v", err)
	}

	//nolint:errcheck // Deadline on a live test connection
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack WSMessage
	if err := ws.ReadJSON(&ack); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if ack.Type != WSTypeResponse {
		t.Fatalf("ack type = %q, want %q", ack.Type, WSTypeResponse)
	}

	// Events no longer reach the unsubscribed client.
	srv.hub.Forward(bridge.Event{EntityID: "sync-task", Type: entity.EventTrigger, Timestamp: time.Now()})

	//nolint:errcheck // Deadline on a live test connection
	ws.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err == nil {
		t.Errorf("expected no message after unsubscribe, got %+v", msg)
	}
}

func TestWebSocket_InvalidMessage(t *testing.T) {
	srv, _ := testServer(t, "")
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	ws := dialWebSocket(t, srv, ts, "")

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}

	//nolint:errcheck // Deadline on a live test connection
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read error response: %v", err)
	}

	if msg.Type != WSTypeError {
		t.Errorf("type = %q, want %q", msg.Type, WSTypeError)
	}
}

func TestWebSocket_AuthRequired(t *testing.T) {
	srv, _ := testServer(t, testSecret)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail without token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("handshake status = %v, want %d", resp, http.StatusUnauthorized)
	}
}

func TestHub_BroadcastDropsWhenClientSaturated(t *testing.T) {
	srv, _ := testServer(t, "")
	hub := srv.hub

	slow := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 1),
		subscriptions: map[string]struct{}{ChannelBridgeEvent: {}},
	}
	slow.send <- []byte("backlog")

	healthy := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelBridgeEvent: {}},
	}

	hub.Register(slow)
	hub.Register(healthy)

	// A saturated client must not stall the broadcast for everyone else.
	done := make(chan struct{})
	go func() {
		hub.Forward(bridge.Event{EntityID: "sync-task", Type: entity.EventTrigger, Timestamp: time.Now().UTC()})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on saturated client")
	}

	if got := len(healthy.send); got != 1 {
		t.Errorf("healthy client queued %d messages, want 1", got)
	}
	// The slow client's event is dropped; its backlog is untouched.
	if got := len(slow.send); got != 1 {
		t.Fatalf("slow client queued %d messages, want 1", got)
	}
	if string(<-slow.send) != "backlog" {
		t.Error("slow client's queued message was replaced instead of the new one dropped")
	}
}

func TestHub_ClientCountAndUnregister(t *testing.T) {
	srv, _ := testServer(t, "")
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	ws := dialWebSocket(t, srv, ts, "")

	if got := srv.hub.ClientCount(); got != 1 {
		t.Fatalf("client count = %d, want 1", got)
	}

	ws.Close()
	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never unregistered after close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
