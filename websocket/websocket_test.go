// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientServerRoundTrip(t *testing.T) {
	srv := NewServer()
	accepted := make(chan *WebSocket, 1)
	var acceptedID string
	srv.OnConnect(func(id string, ws *WebSocket) {
		acceptedID = id
		accepted <- ws
	})

	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/peer-a"

	client := New()
	t.Cleanup(func() { client.Close() })

	opened := make(chan struct{}, 1)
	client.OnOpen(func() { opened <- struct{}{} })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Open(ctx, url); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	select {
	case <-opened:
	case <-time.After(time.Second):
		t.Fatal("onOpen never fired")
	}

	var server *WebSocket
	select {
	case server = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("server never accepted a connection")
	}
	t.Cleanup(func() { server.Close() })

	if acceptedID != "peer-a" {
		t.Fatalf("acceptedID = %q, want %q", acceptedID, "peer-a")
	}
	if server.State() != Open {
		t.Fatalf("server.State() = %v, want Open", server.State())
	}

	received := make(chan Message, 1)
	server.OnMessage(func(m Message) { received <- m })

	if err := client.SendText(`{"id":"peer-b","type":"offer","sdp":"v=0..."}`); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}

	select {
	case m := <-received:
		if m.Type != Text {
			t.Fatalf("message Type = %v, want Text", m.Type)
		}
		if string(m.Payload) != `{"id":"peer-b","type":"offer","sdp":"v=0..."}` {
			t.Fatalf("message Payload = %q", m.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("server never received the message")
	}
}

func TestServerHandlerRejectsMissingID(t *testing.T) {
	srv := NewServer()
	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)

	resp, err := http.Get(httpSrv.URL + "/")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	w := New()
	if err := w.Close(); err != nil {
		t.Fatalf("Close() on an unopened socket: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if w.State() != Closed {
		t.Fatalf("State() = %v, want Closed", w.State())
	}
}
