// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"testing"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

func TestMissingSequences(t *testing.T) {
	cases := []struct {
		last, current uint16
		want          []uint16
	}{
		{10, 11, nil},
		{10, 13, []uint16{11, 12}},
		{0xFFFE, 1, []uint16{0xFFFF, 0}},
		{10, 200, nil}, // gap > 32, treated as a restart
	}
	for _, c := range cases {
		got := missingSequences(c.last, c.current)
		if len(got) != len(c.want) {
			t.Fatalf("missingSequences(%d, %d) = %v, want %v", c.last, c.current, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("missingSequences(%d, %d) = %v, want %v", c.last, c.current, got, c.want)
			}
		}
	}
}

func TestRtcpNackResponderRetransmitsBufferedPackets(t *testing.T) {
	var sent [][]byte
	r := NewRtcpNackResponder(func(payload []byte) error {
		sent = append(sent, payload)
		return nil
	})

	for _, seq := range []uint16{5, 6, 7} {
		pkt := &rtp.Packet{Header: rtp.Header{SequenceNumber: seq}, Payload: []byte{byte(seq)}}
		raw, err := pkt.Marshal()
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		r.outgoing(&Message{Payload: raw})
	}

	nack := &rtcp.TransportLayerNack{
		Nacks: rtcp.NackPairsFromSequenceNumbers([]uint16{6, 100}),
	}
	r.handleNack(nack)

	if len(sent) != 1 {
		t.Fatalf("handleNack() retransmitted %d packets, want 1 (seq 100 was never buffered)", len(sent))
	}
	var got rtp.Packet
	if err := got.Unmarshal(sent[0]); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.SequenceNumber != 6 {
		t.Fatalf("retransmitted sequence = %d, want 6", got.SequenceNumber)
	}
}

func TestRtcpNackResponderEvictsOldestBeyondCapacity(t *testing.T) {
	r := NewRtcpNackResponder(func([]byte) error { return nil })
	for i := 0; i < nackRetainedPackets+10; i++ {
		r.retain(uint16(i), []byte{byte(i)})
	}
	r.mu.Lock()
	n := len(r.buffer)
	_, hasOldest := r.buffer[0]
	r.mu.Unlock()
	if n != nackRetainedPackets {
		t.Fatalf("buffer holds %d entries, want %d", n, nackRetainedPackets)
	}
	if hasOldest {
		t.Fatal("oldest sequence number should have been evicted")
	}
}

func TestNackGeneratorHandlerDetectsGap(t *testing.T) {
	var got *rtcp.TransportLayerNack
	h := NewNackGeneratorHandler(func(nack *rtcp.TransportLayerNack) error {
		got = nack
		return nil
	})

	send := func(seq uint16) {
		pkt := &rtp.Packet{Header: rtp.Header{SequenceNumber: seq, SSRC: 7}}
		raw, err := pkt.Marshal()
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		h.incoming(&Message{Payload: raw})
	}

	send(1)
	if got != nil {
		t.Fatal("first packet seen for an SSRC must not trigger a NACK")
	}
	send(4) // gap: 2, 3 missing
	if got == nil {
		t.Fatal("expected a NACK after a sequence gap")
	}
	var missing []uint16
	for _, pair := range got.Nacks {
		missing = append(missing, pair.PacketList()...)
	}
	if len(missing) != 2 || missing[0] != 2 || missing[1] != 3 {
		t.Fatalf("nacked sequences = %v, want [2 3]", missing)
	}
}
