// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package websocket

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// Server accepts inbound WebSocket connections over plain net/http,
// identifying each by a client id carried in the URL path
// ("/<id>"), matching the path-keyed signaling URL
// original_source's streamer example dials
// ("ws://host:port/<localId>"). Grounded on the example pack's own
// signaling server (github.com/gorilla/websocket.Upgrader plus an
// http.ServeMux handler), generalized from "accept exactly one client"
// to "accept any number, keyed by id" for cmd/rtc-signal's relay.
type Server struct {
	upgrader  websocket.Upgrader
	onConnect func(id string, ws *WebSocket)
}

// NewServer returns a Server with an origin-check that accepts any
// origin, matching the example pack's signaling server (this is a
// relay for cooperating peers, not a public API with browser
// clients to defend against).
func NewServer() *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// OnConnect installs the callback invoked once per accepted
// connection, with id taken from the request path.
func (s *Server) OnConnect(fn func(id string, ws *WebSocket)) {
	s.onConnect = fn
}

// Handler returns an http.Handler that upgrades every request whose
// path has a non-empty trailing segment and dispatches onConnect.
// Mount it at the signaling path, e.g. mux.Handle("/ws/", srv.Handler()).
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.Trim(r.URL.Path, "/")
		if slash := strings.LastIndexByte(id, '/'); slash >= 0 {
			id = id[slash+1:]
		}
		if id == "" {
			http.Error(w, "websocket: missing client id in path", http.StatusBadRequest)
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		ws := &WebSocket{}
		ws.bind(conn)

		if s.onConnect != nil {
			s.onConnect(id, ws)
		}
	})
}
