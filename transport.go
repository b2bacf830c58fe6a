// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import "sync"

// TransportState is the lifecycle of one pipeline node (spec §4.1).
// Monotonic except that Connected and Completed may alternate for ICE.
type TransportState int

const (
	Disconnected TransportState = iota
	Connecting
	Connected
	Completed
	Failed
)

func (s TransportState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// transport is the common shape every pipeline node (IceTransport,
// DtlsTransport, DtlsSrtpTransport, SctpTransport) implements: start,
// stop, send downward, observe state, and receive callbacks for state
// changes and inbound messages from below.
//
// A transport holds a strong reference to its lower neighbor for as
// long as it is started, and only a callback reference (never
// ownership) to whatever sits above it — the upper neighbor is free to
// be torn down first without this transport knowing or caring.
type transport interface {
	start() error
	stop() error
	send(*Message) (bool, error)
	state() TransportState
}

// baseTransport is embedded by every concrete transport to provide the
// state/callback bookkeeping the spec says every pipeline node shares:
// an onState and onMessage slot, serialized state transitions, and the
// "callback reference only, never ownership" rule toward the upper
// neighbor (onState/onMessage are plain funcs, not back-pointers).
type baseTransport struct {
	mu    sync.Mutex
	st    TransportState
	onSt  func(TransportState)
	onMsg func(*Message)
	onErr func(error)
}

func (b *baseTransport) state() TransportState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st
}

// setState transitions to s and invokes onState, if installed, outside
// the lock (callbacks must never be invoked while b.mu is held, since
// they routinely call back into this transport).
func (b *baseTransport) setState(s TransportState) {
	b.mu.Lock()
	if b.st == s {
		b.mu.Unlock()
		return
	}
	b.st = s
	cb := b.onSt
	b.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

func (b *baseTransport) onState(fn func(TransportState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onSt = fn
}

func (b *baseTransport) onMessage(fn func(*Message)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onMsg = fn
}

func (b *baseTransport) onError(fn func(error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onErr = fn
}

func (b *baseTransport) deliver(m *Message) {
	b.mu.Lock()
	cb := b.onMsg
	b.mu.Unlock()
	if cb != nil {
		cb(m)
	}
}

func (b *baseTransport) fail(err error) {
	b.mu.Lock()
	cb := b.onErr
	b.mu.Unlock()
	if cb != nil && err != nil {
		cb(err)
	}
	b.setState(Failed)
}
