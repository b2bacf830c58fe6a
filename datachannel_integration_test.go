// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc_test

import (
	"testing"
	"time"

	rtc "github.com/corvid-labs/rtc"
	"github.com/corvid-labs/rtc/internal/rtctest"
)

// TestDataChannelCloseNotifiesPeer exercises a channel opened by one
// side, then closed by that same side, observing the reset/close
// propagate to the peer that never initiated anything (spec §4.8's
// stream-reset teardown path).
func TestDataChannelCloseNotifiesPeer(t *testing.T) {
	tp, err := rtctest.NewTwoPeers(nil)
	if err != nil {
		t.Fatalf("NewTwoPeers() error = %v", err)
	}
	defer tp.Close()

	var answererChannel *rtc.DataChannel
	answererGotChannel := make(chan struct{}, 1)
	tp.Answerer.OnDataChannel(func(dc *rtc.DataChannel) {
		answererChannel = dc
		answererGotChannel <- struct{}{}
	})

	offererChannel, err := tp.Offerer.CreateDataChannel("control", "", rtc.ReliableOrdered())
	if err != nil {
		t.Fatalf("CreateDataChannel() error = %v", err)
	}

	if err := tp.Connect(10 * time.Second); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	select {
	case <-answererGotChannel:
	case <-time.After(5 * time.Second):
		t.Fatal("answerer never observed the offerer's data channel")
	}

	answererClosed := make(chan struct{}, 1)
	answererChannel.OnClosed(func() { answererClosed <- struct{}{} })

	if err := offererChannel.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	select {
	case <-answererClosed:
	case <-time.After(5 * time.Second):
		t.Fatal("answerer's data channel never observed the offerer's close")
	}
}

// TestDataChannelBufferedAmountLowFires confirms the
// OnBufferedAmountLow threshold callback fires once the queue drains
// below it, per spec §4.6.
func TestDataChannelBufferedAmountLowFires(t *testing.T) {
	tp, err := rtctest.NewTwoPeers(nil)
	if err != nil {
		t.Fatalf("NewTwoPeers() error = %v", err)
	}
	defer tp.Close()

	tp.Answerer.OnDataChannel(func(dc *rtc.DataChannel) {
		dc.OnMessage(func(*rtc.Message) {})
	})

	offererChannel, err := tp.Offerer.CreateDataChannel("bulk", "", rtc.ReliableOrdered())
	if err != nil {
		t.Fatalf("CreateDataChannel() error = %v", err)
	}

	if err := tp.Connect(10 * time.Second); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	offererOpen := make(chan struct{}, 1)
	offererChannel.OnOpen(func() { offererOpen <- struct{}{} })
	select {
	case <-offererOpen:
	case <-time.After(5 * time.Second):
		if offererChannel.State() != rtc.DataChannelOpen {
			t.Fatal("offerer's data channel never reached Open")
		}
	}

	low := make(chan struct{}, 1)
	offererChannel.SetBufferedAmountLowThreshold(0)
	offererChannel.OnBufferedAmountLow(func() {
		select {
		case low <- struct{}{}:
		default:
		}
	})

	if err := offererChannel.Send([]byte("payload")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case <-low:
	case <-time.After(5 * time.Second):
		t.Fatal("OnBufferedAmountLow never fired after the send drained")
	}
}
