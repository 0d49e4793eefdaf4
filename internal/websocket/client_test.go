// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// setupWebSocketServer creates a test WebSocket server with a custom handler.
func setupWebSocketServer(t *testing.T, handler func(t *testing.T, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("failed to upgrade connection: %v", err)
		}
		defer conn.Close()
		handler(t, conn)
	}))
}

// dialWebSocket establishes a WebSocket connection to the test server.
func dialWebSocket(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	return conn
}

func TestNewClient_AssignsUniqueID(t *testing.T) {
	hub := NewHub()
	server := setupWebSocketServer(t, func(t *testing.T, conn *websocket.Conn) {
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	conn := dialWebSocket(t, server)
	defer conn.Close()

	c1 := NewClient(hub, conn, nil)
	c2 := NewClient(hub, conn, nil)
	if c1.ID() == c2.ID() {
		t.Fatal("two clients got the same ID")
	}
}

func TestClient_AddRoom_ReflectedInRoomSet(t *testing.T) {
	hub := NewHub()
	server := setupWebSocketServer(t, func(t *testing.T, conn *websocket.Conn) {
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	conn := dialWebSocket(t, server)
	defer conn.Close()

	c := NewClient(hub, conn, nil)
	c.addRoom("gm")
	c.addRoom("device:D1")

	rooms := c.roomSet()
	if !rooms["gm"] || !rooms["device:D1"] {
		t.Fatalf("roomSet() = %v, want gm and device:D1", rooms)
	}
}

func TestClient_Send_DeliversEnvelopeToServer(t *testing.T) {
	hub := NewHub()
	received := make(chan Envelope, 1)

	server := setupWebSocketServer(t, func(t *testing.T, conn *websocket.Conn) {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Errorf("server failed to read envelope: %v", err)
			return
		}
		received <- env
	})
	defer server.Close()

	conn := dialWebSocket(t, server)
	defer conn.Close()

	c := NewClient(hub, conn, nil)
	c.Start()
	defer func() { hub.Unregister <- c }()

	c.Send("transaction:result", map[string]string{"status": "accepted"})

	select {
	case env := <-received:
		if env.Event != "transaction:result" {
			t.Fatalf("Event = %q, want transaction:result", env.Event)
		}
	case <-time.After(time.Second):
		t.Fatal("server did not receive the envelope")
	}
}

func TestClient_Send_DropsOnFullBuffer(t *testing.T) {
	hub := NewHub()
	server := setupWebSocketServer(t, func(t *testing.T, conn *websocket.Conn) {
		time.Sleep(200 * time.Millisecond)
	})
	defer server.Close()

	conn := dialWebSocket(t, server)
	defer conn.Close()

	c := NewClient(hub, conn, nil)
	// Fill the send buffer without starting writePump to drain it.
	for i := 0; i < cap(c.send)+5; i++ {
		c.Send("heartbeat:ack", nil)
	}
}

func TestClient_ReadPump_InvokesOnEventAndUnregistersOnClose(t *testing.T) {
	hub := NewHub()
	runHub(t, hub)

	gotEvent := make(chan string, 1)
	serverReady := make(chan struct{})
	closeNow := make(chan struct{})

	server := setupWebSocketServer(t, func(t *testing.T, conn *websocket.Conn) {
		env := inboundEnvelope{Event: "heartbeat", Data: json.RawMessage(`{}`)}
		if err := conn.WriteJSON(env); err != nil {
			t.Errorf("server write failed: %v", err)
			return
		}
		close(serverReady)
		<-closeNow
	})
	defer server.Close()

	conn := dialWebSocket(t, server)

	c := NewClient(hub, conn, func(client *Client, event string, data []byte) {
		gotEvent <- event
	})
	hub.Register <- c
	waitUntil(t, func() bool { return hub.ClientCount() == 1 })
	c.Start()

	<-serverReady

	select {
	case event := <-gotEvent:
		if event != "heartbeat" {
			t.Fatalf("event = %q, want heartbeat", event)
		}
	case <-time.After(time.Second):
		t.Fatal("onEvent was not invoked")
	}

	close(closeNow)
	conn.Close()

	waitUntil(t, func() bool { return hub.ClientCount() == 0 })
}

func TestConstants_MatchExpectedTuning(t *testing.T) {
	if writeWait != 10*time.Second {
		t.Errorf("writeWait = %v, want 10s", writeWait)
	}
	if pongWait != 60*time.Second {
		t.Errorf("pongWait = %v, want 60s", pongWait)
	}
	if pingPeriod != (pongWait*9)/10 {
		t.Errorf("pingPeriod = %v, want 9/10 of pongWait", pingPeriod)
	}
	if maxMessageSize != 512*1024 {
		t.Errorf("maxMessageSize = %d, want 524288", maxMessageSize)
	}
}
