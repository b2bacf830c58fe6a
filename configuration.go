// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"time"

	"github.com/pion/transport/v4"

	"github.com/corvid-labs/rtc/cert"
)

// IceTransportPolicy restricts which candidate types IceTransport
// gathers and nominates.
type IceTransportPolicy int

const (
	// PolicyAll gathers host, srflx, and relay candidates.
	PolicyAll IceTransportPolicy = iota
	// PolicyRelay gathers only relay (TURN) candidates, forcing all
	// traffic through a TURN server.
	PolicyRelay
)

// IceServer is one STUN or TURN server entry. Username/Credential are
// empty for STUN-only entries.
type IceServer struct {
	URLs       []string
	Username   string
	Credential string
}

// Configuration is the single entry point for every tunable named in
// spec §4.4, §4.6, and §5. A zero-value Configuration is not usable:
// callers build one with NewConfiguration. It is never loaded from a
// file; cmd/rtc-signal's YAML file configures only the relay itself.
type Configuration struct {
	IceServers         []IceServer
	IceTransportPolicy IceTransportPolicy

	// PortRangeBegin/End bound the local UDP ports IceTransport binds.
	// Zero means unrestricted.
	PortRangeBegin uint16
	PortRangeEnd   uint16

	EnableUdpMux  bool
	EnableIceTcp  bool
	EnableMDNS    bool
	BindAddress   string
	Mtu           int

	// GatheringTimeout bounds IceTransport candidate gathering (spec
	// §4.4's "gathering deadline"). Zero means no bound.
	GatheringTimeout time.Duration

	// SctpSendBufferLimit bounds SctpTransport's outbound Queue
	// (spec §4.6 "configured send buffer").
	SctpSendBufferLimit int

	// DisableAutoNegotiation turns off the debounced renegotiation
	// spec §4.7 describes for newly created tracks/channels.
	DisableAutoNegotiation bool

	// CleanupTimeout bounds how long Close blocks waiting for
	// transports to reach a terminal state (spec §5 and the §9 open
	// question about the hard-coded 10s constant: exposed here as a
	// configurable field, defaulting to 10s via NewConfiguration).
	CleanupTimeout time.Duration

	// Certificate is the DTLS identity this PeerConnection presents.
	// Nil means PeerConnection generates an ephemeral one.
	Certificate *cert.Certificate

	// Net overrides the networking stack IceTransport's agent gathers
	// and dials candidates over. Nil means the real OS network stack.
	// This exists for internal/rtctest's vnet-based two-peer harness
	// (the same seam pion/ice's own test suite uses); production
	// callers never set it.
	Net transport.Net
}

// NewConfiguration returns a Configuration with the defaults this
// module runs with when the caller overrides nothing.
func NewConfiguration() Configuration {
	return Configuration{
		IceTransportPolicy:  PolicyAll,
		Mtu:                 1200,
		GatheringTimeout:    10 * time.Second,
		SctpSendBufferLimit: 16 * 1024 * 1024,
		CleanupTimeout:      10 * time.Second,
	}
}
