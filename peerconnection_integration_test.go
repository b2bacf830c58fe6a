// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc_test

import (
	"testing"
	"time"

	rtc "github.com/corvid-labs/rtc"
	"github.com/corvid-labs/rtc/internal/rtctest"
)

func TestPeerConnectionDataChannelRoundTrip(t *testing.T) {
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

	offererChannel, err := tp.Offerer.CreateDataChannel("chat", "", rtc.ReliableOrdered())
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
	if answererChannel.Label() != "chat" {
		t.Fatalf("answererChannel.Label() = %q, want %q", answererChannel.Label(), "chat")
	}

	received := make(chan string, 1)
	answererChannel.OnMessage(func(m *rtc.Message) { received <- string(m.Payload) })

	offererOpen := make(chan struct{}, 1)
	offererChannel.OnOpen(func() { offererOpen <- struct{}{} })
	select {
	case <-offererOpen:
	case <-time.After(5 * time.Second):
		if offererChannel.State() != rtc.DataChannelOpen {
			t.Fatal("offerer's data channel never reached Open")
		}
	}

	if err := offererChannel.SendText("hello from offerer"); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}

	select {
	case payload := <-received:
		if payload != "hello from offerer" {
			t.Fatalf("received payload = %q", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("answerer never received the offerer's message")
	}
}

func TestPeerConnectionTrackRoundTrip(t *testing.T) {
	tp, err := rtctest.NewTwoPeers(nil)
	if err != nil {
		t.Fatalf("NewTwoPeers() error = %v", err)
	}
	defer tp.Close()

	var answererTrack *rtc.Track
	answererGotTrack := make(chan struct{}, 1)
	tp.Answerer.OnTrack(func(tr *rtc.Track) {
		answererTrack = tr
		answererGotTrack <- struct{}{}
	})

	rtpMap := rtc.RtpMap{PayloadType: 111, Codec: "opus", ClockRate: 48000}
	offererTrack, err := tp.Offerer.AddTrack(rtc.MediaAudio, rtc.SendRecv, rtpMap, 0xC0FFEE, "offerer-audio")
	if err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}

	if err := tp.Connect(10 * time.Second); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	select {
	case <-answererGotTrack:
	case <-time.After(5 * time.Second):
		t.Fatal("answerer never observed the offerer's audio track")
	}
	if answererTrack.Kind() != rtc.MediaAudio {
		t.Fatalf("answererTrack.Kind() = %v, want MediaAudio", answererTrack.Kind())
	}

	received := make(chan []byte, 1)
	answererTrack.OnMessage(func(m *rtc.Message) { received <- m.Payload })

	packetizer := rtc.NewOpusPacketizationHandler(offererTrack.Config(), 1200, 960)
	sample := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	// The Track starts sending only once its own SRTP transport is
	// bound; the test retries briefly rather than sleeping a fixed
	// amount, since the exact handshake completion tick is not
	// observable from this package.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := offererTrack.SendSample(packetizer.Packetize(sample)); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("offerer's track never became ready to send")
		}
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case payload := <-received:
		if len(payload) == 0 {
			t.Fatal("answerer received an empty RTP payload")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("answerer never received the offerer's RTP sample")
	}
}
