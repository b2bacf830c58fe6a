// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/corvid-labs/rtc/websocket"
)

// envelope is the JSON-wrapped SDP/candidate message spec §4.10 and
// SPEC_FULL.md §12 describe: original_source's streamer example
// builds exactly this shape ({"id", "type", "sdp"}), with "id" set to
// the id of the peer the message is meant for. rtc-signal reads only
// that field to decide where to forward and otherwise treats the
// payload as opaque.
type envelope struct {
	ID string `json:"id"`
}

// session is one client id's relay state: a live WebSocket when
// connected, and a small outbox of messages addressed to it while it
// is not (an offer can race ahead of the peer that still needs to
// dial in).
type session struct {
	id         string
	ws         *websocket.WebSocket
	lastSeen   time.Time
	pending    []pendingMessage
	relayCount uint64
}

type pendingMessage struct {
	text    bool
	payload []byte
}

// relay is the signaling relay's session table: it accepts connections
// keyed by client id and forwards any JSON envelope naming another id
// to that id's WebSocket, buffering briefly when the target hasn't
// dialed in yet. This is the "used by examples for signaling" instance
// SPEC_FULL.md §12 calls for — it never parses SDP beyond the
// envelope's "id" field, and never fans a message out to more than one
// peer.
type relay struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	logger   *slog.Logger
}

func newRelay(ttl time.Duration, logger *slog.Logger) *relay {
	return &relay{
		sessions: make(map[string]*session),
		ttl:      ttl,
		logger:   logger,
	}
}

// connect registers ws under id, flushes any messages that arrived
// before this id dialed in, and wires message/close handling. This is
// the websocket.Server.OnConnect callback.
func (r *relay) connect(id string, ws *websocket.WebSocket) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		s = &session{id: id}
		r.sessions[id] = s
	}
	s.ws = ws
	s.lastSeen = time.Time{}
	pending := s.pending
	s.pending = nil
	r.mu.Unlock()

	r.logger.Info("signaling peer connected", "id", id)

	for _, m := range pending {
		if err := r.deliver(ws, m); err != nil {
			r.logger.Warn("flushing buffered message failed", "id", id, "error", err)
		}
	}

	ws.OnMessage(func(m websocket.Message) {
		r.route(id, m)
	})
	ws.OnClosed(func() {
		r.mu.Lock()
		if s.ws == ws {
			s.ws = nil
			s.lastSeen = timeNow()
		}
		r.mu.Unlock()
		r.logger.Info("signaling peer disconnected", "id", id)
	})
}

// route parses m's envelope for a target id and forwards the raw
// payload to it, buffering if the target is not currently connected.
// A message with no "id" field, or one addressed to the sender's own
// id, is dropped: rtc-signal relays exactly the two message shapes
// named in SPEC_FULL.md §13 (an offer-shaped JSON envelope, or raw
// forwarding to an already-known id) and does not interpret SDP.
func (r *relay) route(fromID string, m websocket.Message) {
	var env envelope
	if err := json.Unmarshal(m.Payload, &env); err != nil || env.ID == "" {
		r.logger.Warn("dropping message with no routable id", "from", fromID, "error", err)
		return
	}
	if env.ID == fromID {
		return
	}

	pm := pendingMessage{text: m.Type == websocket.Text, payload: m.Payload}

	r.mu.Lock()
	target, ok := r.sessions[env.ID]
	if !ok {
		target = &session{id: env.ID}
		r.sessions[env.ID] = target
	}
	var ws *websocket.WebSocket
	if target.ws != nil {
		ws = target.ws
	} else {
		target.pending = append(target.pending, pm)
	}
	if fromSession, ok := r.sessions[fromID]; ok {
		fromSession.relayCount++
	}
	r.mu.Unlock()

	if ws == nil {
		return
	}
	if err := r.deliver(ws, pm); err != nil {
		r.logger.Warn("relaying message failed", "from", fromID, "to", env.ID, "error", err)
	}
}

func (r *relay) deliver(ws *websocket.WebSocket, m pendingMessage) error {
	if m.text {
		return ws.SendText(string(m.payload))
	}
	return ws.Send(m.payload)
}

// sweep evicts disconnected sessions that have been idle past the
// relay's TTL, so ids from peers that crash without closing cleanly
// don't accumulate in the session table forever. A session with a
// live WebSocket, or one still holding undelivered pending messages
// for a peer expected to reconnect shortly, is never swept.
func (r *relay) sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, s := range r.sessions {
		if s.ws != nil || len(s.pending) > 0 {
			continue
		}
		if s.lastSeen.IsZero() || now.Sub(s.lastSeen) < r.ttl {
			continue
		}
		delete(r.sessions, id)
		evicted++
	}
	return evicted
}

// snapshot is the relay's own dump-stats shape: per-id connection
// state and how many messages it has had relayed on its behalf. This
// is not PeerConnection.Stats() — rtc-signal is a relay, not a peer,
// and never holds a PeerConnection (SPEC_FULL.md §12).
type snapshot struct {
	Sessions []sessionSnapshot `cbor:"sessions"`
}

type sessionSnapshot struct {
	ID         string `cbor:"id"`
	Connected  bool   `cbor:"connected"`
	Pending    int    `cbor:"pending"`
	RelayCount uint64 `cbor:"relay_count"`
}

func (r *relay) snapshot() snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := snapshot{Sessions: make([]sessionSnapshot, 0, len(r.sessions))}
	for _, s := range r.sessions {
		out.Sessions = append(out.Sessions, sessionSnapshot{
			ID:         s.id,
			Connected:  s.ws != nil,
			Pending:    len(s.pending),
			RelayCount: s.relayCount,
		})
	}
	return out
}

// timeNow is the one wall-clock read session bookkeeping needs;
// broken out so tests can't accidentally depend on it ticking.
func timeNow() time.Time {
	return time.Now()
}
