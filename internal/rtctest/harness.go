// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtctest

import (
	"fmt"
	"time"

	"github.com/corvid-labs/rtc"
)

// TwoPeers is an offerer and answerer joined over a VNet, each
// configured to gather candidates only on its own virtual host. A
// caller adds tracks/channels to Offerer and/or Answerer before
// calling Connect, the same order a real application follows.
type TwoPeers struct {
	VNet     *VNet
	Offerer  *rtc.PeerConnection
	Answerer *rtc.PeerConnection
}

// NewTwoPeers builds a fresh VNet and a PeerConnection on each side,
// applying extra to both Configurations (e.g. to set a shared
// CleanupTimeout) before construction.
func NewTwoPeers(extra func(*rtc.Configuration)) (*TwoPeers, error) {
	vn, err := NewVNet()
	if err != nil {
		return nil, err
	}

	offererCfg := rtc.NewConfiguration()
	offererCfg.Net = vn.NetA
	answererCfg := rtc.NewConfiguration()
	answererCfg.Net = vn.NetB
	if extra != nil {
		extra(&offererCfg)
		extra(&answererCfg)
	}

	offerer, err := rtc.NewPeerConnection(offererCfg)
	if err != nil {
		vn.Close()
		return nil, fmt.Errorf("rtctest: building offerer: %w", err)
	}
	answerer, err := rtc.NewPeerConnection(answererCfg)
	if err != nil {
		offerer.Close()
		vn.Close()
		return nil, fmt.Errorf("rtctest: building answerer: %w", err)
	}

	return &TwoPeers{VNet: vn, Offerer: offerer, Answerer: answerer}, nil
}

// Close tears down both PeerConnections and the VNet.
func (tp *TwoPeers) Close() {
	tp.Offerer.Close()
	tp.Answerer.Close()
	tp.VNet.Close()
}

// Connect drives a full offer/answer/trickle-ICE exchange directly
// between the two in-process PeerConnections (no text SDP, no
// websocket relay — signaling transport is exercised separately by
// the websocket package's own tests) and blocks until both sides
// report PeerConnectionConnected or timeout elapses.
func (tp *TwoPeers) Connect(timeout time.Duration) error {
	offererConnected := make(chan struct{}, 1)
	answererConnected := make(chan struct{}, 1)
	tp.Offerer.OnStateChange(func(s rtc.PeerConnectionState) {
		if s == rtc.PeerConnectionConnected {
			select {
			case offererConnected <- struct{}{}:
			default:
			}
		}
	})
	tp.Answerer.OnStateChange(func(s rtc.PeerConnectionState) {
		if s == rtc.PeerConnectionConnected {
			select {
			case answererConnected <- struct{}{}:
			default:
			}
		}
	})

	tp.Offerer.OnIceCandidate(func(c rtc.IceCandidate) {
		_ = tp.Answerer.AddRemoteCandidate(c)
	})
	tp.Answerer.OnIceCandidate(func(c rtc.IceCandidate) {
		_ = tp.Offerer.AddRemoteCandidate(c)
	})

	// SetRemoteDescription of an offer creates the answer itself and
	// emits it through OnLocalDescription; calling SetLocalDescription
	// again afterwards would start a new offer.
	answers := make(chan *rtc.Description, 1)
	tp.Answerer.OnLocalDescription(func(d *rtc.Description) {
		if d.Type == rtc.Answer {
			select {
			case answers <- d:
			default:
			}
		}
	})

	offer, err := tp.Offerer.SetLocalDescription()
	if err != nil {
		return fmt.Errorf("rtctest: offerer SetLocalDescription: %w", err)
	}
	if err := tp.Answerer.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("rtctest: answerer SetRemoteDescription(offer): %w", err)
	}

	var answer *rtc.Description
	select {
	case answer = <-answers:
	default:
		return fmt.Errorf("rtctest: answerer emitted no answer")
	}
	if err := tp.Offerer.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("rtctest: offerer SetRemoteDescription(answer): %w", err)
	}

	// A nil channel is never select-ready, so once one side's signal
	// fires we nil it out and the next iteration waits only on
	// whichever side hasn't connected yet.
	deadline := time.After(timeout)
	for i := 0; i < 2; i++ {
		select {
		case <-offererConnected:
			offererConnected = nil
		case <-answererConnected:
			answererConnected = nil
		case <-deadline:
			return fmt.Errorf("rtctest: peers did not both reach Connected within %s", timeout)
		}
	}
	return nil
}
