// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/corvid-labs/rtc/websocket"
)

func newTestRelay(t *testing.T) (*relay, string) {
	t.Helper()
	r := newRelay(time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	srv := websocket.NewServer()
	srv.OnConnect(r.connect)

	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)

	return r, "ws" + strings.TrimPrefix(httpSrv.URL, "http")
}

func dialPeer(t *testing.T, baseURL, id string) *websocket.WebSocket {
	t.Helper()
	ws := websocket.New()
	t.Cleanup(func() { ws.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ws.Open(ctx, baseURL+"/"+id); err != nil {
		t.Fatalf("Open(%s) error = %v", id, err)
	}
	return ws
}

func TestRelayForwardsToConnectedPeer(t *testing.T) {
	_, baseURL := newTestRelay(t)

	alice := dialPeer(t, baseURL, "alice")
	bob := dialPeer(t, baseURL, "bob")

	received := make(chan websocket.Message, 1)
	bob.OnMessage(func(m websocket.Message) { received <- m })

	if err := alice.SendText(`{"id":"bob","type":"offer","sdp":"v=0..."}`); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}

	select {
	case m := <-received:
		if string(m.Payload) != `{"id":"bob","type":"offer","sdp":"v=0..."}` {
			t.Fatalf("payload = %q", m.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("bob never received alice's offer")
	}
}

func TestRelayBuffersForNotYetConnectedPeer(t *testing.T) {
	r, baseURL := newTestRelay(t)

	alice := dialPeer(t, baseURL, "alice")
	if err := alice.SendText(`{"id":"carol","type":"offer","sdp":"v=0..."}`); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}

	// Give route() a moment to land the message in carol's pending
	// outbox before carol ever dials in.
	time.Sleep(50 * time.Millisecond)

	snap := r.snapshot()
	found := false
	for _, s := range snap.Sessions {
		if s.ID == "carol" {
			found = true
			if s.Connected {
				t.Fatal("carol should not be connected yet")
			}
			if s.Pending != 1 {
				t.Fatalf("carol.Pending = %d, want 1", s.Pending)
			}
		}
	}
	if !found {
		t.Fatal("carol should have a pending session entry")
	}

	received := make(chan websocket.Message, 1)
	carol := websocket.New()
	carol.OnMessage(func(m websocket.Message) { received <- m })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := carol.Open(ctx, baseURL+"/carol"); err != nil {
		t.Fatalf("carol Open() error = %v", err)
	}
	t.Cleanup(func() { carol.Close() })

	select {
	case m := <-received:
		if string(m.Payload) != `{"id":"carol","type":"offer","sdp":"v=0..."}` {
			t.Fatalf("payload = %q", m.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("carol never received the buffered offer on connect")
	}
}

func TestRelaySweepEvictsOnlyIdleDisconnected(t *testing.T) {
	r := newRelay(time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r.mu.Lock()
	r.sessions["stale"] = &session{id: "stale", lastSeen: time.Now().Add(-2 * time.Minute)}
	r.sessions["fresh"] = &session{id: "fresh", lastSeen: time.Now()}
	r.sessions["pending"] = &session{id: "pending", lastSeen: time.Now().Add(-2 * time.Minute), pending: []pendingMessage{{text: true, payload: []byte("x")}}}
	r.mu.Unlock()

	evicted := r.sweep(time.Now())
	if evicted != 1 {
		t.Fatalf("sweep() evicted %d, want 1", evicted)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions["stale"]; ok {
		t.Fatal("stale session should have been evicted")
	}
	if _, ok := r.sessions["fresh"]; !ok {
		t.Fatal("fresh session should not have been evicted")
	}
	if _, ok := r.sessions["pending"]; !ok {
		t.Fatal("session with pending messages should not have been evicted")
	}
}

func TestRelayDropsMessageWithNoRoutableID(t *testing.T) {
	r, baseURL := newTestRelay(t)

	alice := dialPeer(t, baseURL, "alice")
	if err := alice.SendText(`not json`); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if err := alice.SendText(`{"type":"offer"}`); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	snap := r.snapshot()
	for _, s := range snap.Sessions {
		if s.ID != "alice" && s.Pending != 0 {
			t.Fatalf("unexpected pending session %q created from unroutable messages", s.ID)
		}
	}
}
