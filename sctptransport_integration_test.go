// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc_test

import (
	"fmt"
	"testing"
	"time"

	rtc "github.com/corvid-labs/rtc"
	"github.com/corvid-labs/rtc/internal/rtctest"
)

// TestSctpTransportAssociationReachesConnected confirms the single
// per-PeerConnection SCTP association (spec §4.6) comes up once DTLS
// finishes, observable through PeerConnection.Stats() since
// SctpTransport itself exposes no association-level type outside the
// package.
func TestSctpTransportAssociationReachesConnected(t *testing.T) {
	tp, err := rtctest.NewTwoPeers(nil)
	if err != nil {
		t.Fatalf("NewTwoPeers() error = %v", err)
	}
	defer tp.Close()

	// A data channel forces SCTP negotiation; without one, no
	// application m-line is offered and no association forms.
	if _, err := tp.Offerer.CreateDataChannel("probe", "", rtc.ReliableOrdered()); err != nil {
		t.Fatalf("CreateDataChannel() error = %v", err)
	}
	tp.Answerer.OnDataChannel(func(*rtc.DataChannel) {})

	if err := tp.Connect(10 * time.Second); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		offererState := tp.Offerer.Stats().SctpState
		answererState := tp.Answerer.Stats().SctpState
		if offererState == "connected" && answererState == "connected" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("sctp association never reached Connected on both sides: offerer=%q answerer=%q",
				offererState, answererState)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// TestSctpTransportCarriesMultipleStreams confirms one association
// multiplexes several DataChannels concurrently (spec §4.6: one
// sctp.Stream per channel, all sharing the PeerConnection's single
// SctpTransport), each channel independently reliable/ordered.
func TestSctpTransportCarriesMultipleStreams(t *testing.T) {
	tp, err := rtctest.NewTwoPeers(nil)
	if err != nil {
		t.Fatalf("NewTwoPeers() error = %v", err)
	}
	defer tp.Close()

	const channelCount = 4
	received := make(chan string, channelCount)
	tp.Answerer.OnDataChannel(func(dc *rtc.DataChannel) {
		label := dc.Label()
		dc.OnMessage(func(m *rtc.Message) { received <- fmt.Sprintf("%s:%s", label, string(m.Payload)) })
	})

	offererChannels := make([]*rtc.DataChannel, channelCount)
	for i := 0; i < channelCount; i++ {
		dc, err := tp.Offerer.CreateDataChannel(fmt.Sprintf("ch%d", i), "", rtc.ReliableOrdered())
		if err != nil {
			t.Fatalf("CreateDataChannel(%d) error = %v", i, err)
		}
		offererChannels[i] = dc
	}

	if err := tp.Connect(10 * time.Second); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	for i, dc := range offererChannels {
		open := make(chan struct{}, 1)
		dc.OnOpen(func() { open <- struct{}{} })
		select {
		case <-open:
		case <-time.After(5 * time.Second):
			if dc.State() != rtc.DataChannelOpen {
				t.Fatalf("offerer channel %d never reached Open", i)
			}
		}
		if err := dc.SendText(fmt.Sprintf("payload%d", i)); err != nil {
			t.Fatalf("SendText(%d) error = %v", i, err)
		}
	}

	seen := make(map[string]bool, channelCount)
	deadline := time.After(10 * time.Second)
	for len(seen) < channelCount {
		select {
		case got := <-received:
			seen[got] = true
		case <-deadline:
			t.Fatalf("only received %d/%d messages: %v", len(seen), channelCount, seen)
		}
	}
	for i := 0; i < channelCount; i++ {
		want := fmt.Sprintf("ch%d:payload%d", i, i)
		if !seen[want] {
			t.Fatalf("missing expected delivery %q, got %v", want, seen)
		}
	}
}

// TestSctpTransportClosesCleanlyOnPeerConnectionClose confirms the
// association tears down without blocking or double-close panics when
// the owning PeerConnection closes (spec §4.6/§9's explicit-ownership
// teardown contract).
func TestSctpTransportClosesCleanlyOnPeerConnectionClose(t *testing.T) {
	tp, err := rtctest.NewTwoPeers(nil)
	if err != nil {
		t.Fatalf("NewTwoPeers() error = %v", err)
	}
	defer tp.VNet.Close()

	if _, err := tp.Offerer.CreateDataChannel("probe", "", rtc.ReliableOrdered()); err != nil {
		t.Fatalf("CreateDataChannel() error = %v", err)
	}
	tp.Answerer.OnDataChannel(func(*rtc.DataChannel) {})

	if err := tp.Connect(10 * time.Second); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	closed := make(chan error, 1)
	go func() { closed <- tp.Offerer.Close() }()

	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("Offerer.Close() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Offerer.Close() never returned")
	}

	// Closing twice must not panic or deadlock.
	if err := tp.Offerer.Close(); err != nil {
		t.Fatalf("second Offerer.Close() error = %v", err)
	}

	if err := tp.Answerer.Close(); err != nil {
		t.Fatalf("Answerer.Close() error = %v", err)
	}
}
