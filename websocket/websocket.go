// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

// Package websocket is the standalone signaling transport referenced
// by spec §4.10 and built out in SPEC_FULL.md §12: a client that opens
// one WebSocket connection and a Server that accepts them, keyed by a
// path-carried client id. Neither type knows anything about SDP or
// DCEP; they move opaque text/binary frames, the same separation
// spec §1 draws between the transport pipeline and whatever carries
// its offer/answer exchange.
//
// Grounded on RFC 6455 framing via github.com/gorilla/websocket, the
// library the wider example pack reaches for (the teacher's own
// go.mod carries no WebSocket dependency), and on
// original_source/src/impl/websocket.cpp's open/close state machine.
package websocket

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// State mirrors original_source's WebSocket::State: Connecting until
// the handshake completes, Open while frames flow, Closing once
// either side starts the close handshake, terminal Closed after.
type State int

const (
	Connecting State = iota
	Open
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// MessageType distinguishes a text frame from a binary frame.
type MessageType int

const (
	Binary MessageType = iota
	Text
)

// Message is one received WebSocket frame.
type Message struct {
	Type    MessageType
	Payload []byte
}

// WebSocket is one client connection: either dialed with Open or
// handed to a callback by Server after accepting an inbound
// connection. Both sides share the same read-pump/state-machine/
// callback shape.
type WebSocket struct {
	mu    sync.Mutex
	wmu   sync.Mutex // serializes writes; gorilla/websocket requires one writer at a time
	conn  *websocket.Conn
	state State

	onOpen    func()
	onMessage func(Message)
	onClosed  func()
	onError   func(error)

	closeOnce sync.Once
}

// New returns an unopened WebSocket. Call Open to dial out, or use
// Server to obtain one already bound to an accepted connection.
func New() *WebSocket {
	return &WebSocket{state: Connecting}
}

// Open dials url (ws:// or wss://) and starts the read pump. Per
// original_source's open(), calling Open on anything but a fresh
// WebSocket is a logic error.
func (w *WebSocket) Open(ctx context.Context, url string) error {
	w.mu.Lock()
	if w.state != Connecting || w.conn != nil {
		w.mu.Unlock()
		return fmt.Errorf("websocket: Open called on a %s connection", w.state)
	}
	w.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		w.transitionClosed(err)
		return fmt.Errorf("websocket: dialing %s: %w", url, err)
	}
	w.bind(conn)
	return nil
}

// bind attaches conn, transitions to Open, and starts the read pump.
// Shared by Open (dial side) and Server (accept side).
func (w *WebSocket) bind(conn *websocket.Conn) {
	w.mu.Lock()
	w.conn = conn
	w.state = Open
	cb := w.onOpen
	w.mu.Unlock()

	if cb != nil {
		cb()
	}
	go w.readPump()
}

func (w *WebSocket) readPump() {
	for {
		msgType, payload, err := w.conn.ReadMessage()
		if err != nil {
			w.transitionClosed(err)
			return
		}

		var mt MessageType
		switch msgType {
		case websocket.TextMessage:
			mt = Text
		case websocket.BinaryMessage:
			mt = Binary
		default:
			continue // ping/pong/close handled internally by gorilla
		}

		w.mu.Lock()
		cb := w.onMessage
		w.mu.Unlock()
		if cb != nil {
			cb(Message{Type: mt, Payload: payload})
		}
	}
}

// Send writes a binary frame.
func (w *WebSocket) Send(payload []byte) error {
	return w.write(websocket.BinaryMessage, payload)
}

// SendText writes a text frame.
func (w *WebSocket) SendText(text string) error {
	return w.write(websocket.TextMessage, []byte(text))
}

func (w *WebSocket) write(msgType int, payload []byte) error {
	w.mu.Lock()
	conn := w.conn
	state := w.state
	w.mu.Unlock()

	if state != Open || conn == nil {
		return fmt.Errorf("websocket: write on a %s connection", state)
	}

	w.wmu.Lock()
	defer w.wmu.Unlock()
	if err := conn.WriteMessage(msgType, payload); err != nil {
		return fmt.Errorf("websocket: write: %w", err)
	}
	return nil
}

// State returns the connection's current lifecycle state.
func (w *WebSocket) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Close starts the close handshake and tears the connection down.
// Idempotent.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	if w.state == Closed || w.state == Closing {
		w.mu.Unlock()
		return nil
	}
	w.state = Closing
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		w.transitionClosed(nil)
		return nil
	}

	w.wmu.Lock()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	w.wmu.Unlock()

	err := conn.Close()
	w.transitionClosed(nil)
	return err
}

// transitionClosed moves to Closed exactly once, reporting cause
// through onError (if non-nil and cause is non-nil) before firing
// onClosed — matching the teacher's single-terminal-callback
// convention for DataChannel/Track/PeerConnection teardown.
func (w *WebSocket) transitionClosed(cause error) {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.state = Closed
		errCb := w.onError
		closedCb := w.onClosed
		w.mu.Unlock()

		if cause != nil && errCb != nil {
			errCb(cause)
		}
		if closedCb != nil {
			closedCb()
		}
	})
}

func (w *WebSocket) OnOpen(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onOpen = fn
}

func (w *WebSocket) OnMessage(fn func(Message)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onMessage = fn
}

func (w *WebSocket) OnClosed(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onClosed = fn
}

func (w *WebSocket) OnError(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = fn
}
