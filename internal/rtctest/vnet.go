// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

// Package rtctest is the two-peer integration harness referenced by
// SPEC_FULL.md §10's test-tooling section: a virtual network
// (github.com/pion/transport/v4/vnet) carries ICE/DTLS/SCTP/SRTP
// between two in-process PeerConnections without touching a real
// socket or sleeping on wall-clock timers, the same pattern
// pion/ice and pion/webrtc use in their own test suites. It plays the
// role the teacher's lib/testutil plays for its own packages: one
// shared fixture builder, reused by every package's tests.
package rtctest

import (
	"fmt"

	"github.com/pion/logging"
	"github.com/pion/transport/v4"
	"github.com/pion/transport/v4/vnet"
)

// VNet is a pair of networking stacks joined by an unrestricted
// virtual router (no NAT, no added latency or loss): enough for
// ICE/DTLS/SCTP/SRTP to run their real state machines against each
// other deterministically.
type VNet struct {
	router *vnet.Router
	NetA   transport.Net
	NetB   transport.Net
}

// NewVNet builds a two-host virtual network: 10.0.0.1 ("A") and
// 10.0.0.2 ("B") attached to a shared /24 router, and starts packet
// forwarding. Call Close when done.
func NewVNet() (*VNet, error) {
	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "10.0.0.0/24",
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		return nil, fmt.Errorf("rtctest: building vnet router: %w", err)
	}

	netA, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.1"}})
	if err != nil {
		return nil, fmt.Errorf("rtctest: building net A: %w", err)
	}
	if err := router.AddNet(netA); err != nil {
		return nil, fmt.Errorf("rtctest: attaching net A: %w", err)
	}

	netB, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.2"}})
	if err != nil {
		return nil, fmt.Errorf("rtctest: building net B: %w", err)
	}
	if err := router.AddNet(netB); err != nil {
		return nil, fmt.Errorf("rtctest: attaching net B: %w", err)
	}

	if err := router.Start(); err != nil {
		return nil, fmt.Errorf("rtctest: starting vnet router: %w", err)
	}

	return &VNet{router: router, NetA: netA, NetB: netB}, nil
}

// Close stops packet forwarding between the two hosts.
func (v *VNet) Close() error {
	return v.router.Stop()
}
