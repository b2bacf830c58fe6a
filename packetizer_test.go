// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestSplitAnnexBStartCodes(t *testing.T) {
	h := &H264PacketizationHandler{separator: StartSequence}
	sample := []byte{0, 0, 0, 1, 0x67, 0xAA, 0, 0, 1, 0x68, 0xBB, 0xCC}
	nalus := h.splitNALUs(sample)
	if len(nalus) != 2 {
		t.Fatalf("splitNALUs() returned %d NALUs, want 2", len(nalus))
	}
	if !bytes.Equal(nalus[0], []byte{0x67, 0xAA}) {
		t.Fatalf("nalus[0] = %x, want 67aa", nalus[0])
	}
	if !bytes.Equal(nalus[1], []byte{0x68, 0xBB, 0xCC}) {
		t.Fatalf("nalus[1] = %x, want 68bbcc", nalus[1])
	}
}

func TestSplitLengthPrefixed(t *testing.T) {
	h := &H264PacketizationHandler{separator: Length}
	var buf bytes.Buffer
	for _, nalu := range [][]byte{{0x67, 0xAA}, {0x68, 0xBB, 0xCC}} {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(nalu)))
		buf.Write(lenBuf[:])
		buf.Write(nalu)
	}
	nalus := h.splitNALUs(buf.Bytes())
	if len(nalus) != 2 {
		t.Fatalf("splitNALUs() returned %d NALUs, want 2", len(nalus))
	}
	if !bytes.Equal(nalus[1], []byte{0x68, 0xBB, 0xCC}) {
		t.Fatalf("nalus[1] = %x, want 68bbcc", nalus[1])
	}
}

func TestH264PacketizeSingleNALU(t *testing.T) {
	cfg := NewRtpPacketizationConfig(42, "cname", 96, 90000, 0, 0)
	h := NewH264PacketizationHandler(cfg, 1200, StartSequence, 3000)
	sample := []byte{0, 0, 0, 1, 0x67, 0xAA, 0xBB}

	packets := h.Packetize(sample)
	if len(packets) != 1 {
		t.Fatalf("packetize() returned %d packets, want 1", len(packets))
	}
	if !packets[0].Header.Marker {
		t.Fatal("last packet of the access unit must have the marker bit set")
	}
	if !bytes.Equal(packets[0].Payload, []byte{0x67, 0xAA, 0xBB}) {
		t.Fatalf("payload = %x, want 67aabb (unfragmented single NALU passthrough)", packets[0].Payload)
	}
}

func TestH264FragmentFUARoundTrip(t *testing.T) {
	cfg := NewRtpPacketizationConfig(42, "cname", 96, 90000, 0, 0)
	h := NewH264PacketizationHandler(cfg, 4, StartSequence, 3000)

	nalHeader := byte(0x65) // nri=0x60, type=5 (IDR)
	nalPayload := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	nalu := append([]byte{nalHeader}, nalPayload...)
	sample := append([]byte{0, 0, 0, 1}, nalu...)

	packets := h.Packetize(sample)
	if len(packets) < 2 {
		t.Fatalf("packetize() returned %d packets, want a multi-fragment FU-A run", len(packets))
	}

	var reassembled []byte
	for i, p := range packets {
		if len(p.Payload) < 2 {
			t.Fatalf("FU-A packet %d too short: %x", i, p.Payload)
		}
		fuIndicator, fuHeader := p.Payload[0], p.Payload[1]
		if fuIndicator&0x1F != fuaNaluType {
			t.Fatalf("packet %d FU indicator type = %#x, want %#x", i, fuIndicator&0x1F, fuaNaluType)
		}
		startBit := fuHeader&0x80 != 0
		endBit := fuHeader&0x40 != 0
		if i == 0 && !startBit {
			t.Fatal("first FU-A fragment must have the start bit set")
		}
		if i != 0 && startBit {
			t.Fatalf("fragment %d unexpectedly has the start bit set", i)
		}
		if i == len(packets)-1 && !endBit {
			t.Fatal("last FU-A fragment must have the end bit set")
		}
		if i != len(packets)-1 && endBit {
			t.Fatalf("fragment %d unexpectedly has the end bit set", i)
		}
		if i == 0 {
			reassembled = append(reassembled, fuHeader&naluTypeMask|(fuIndicator&^naluTypeMask))
		}
		reassembled = append(reassembled, p.Payload[2:]...)
	}
	if !bytes.Equal(reassembled, nalu) {
		t.Fatalf("reassembled NALU = %x, want %x", reassembled, nalu)
	}
	if !packets[len(packets)-1].Header.Marker {
		t.Fatal("last packet of the access unit must have the marker bit set")
	}

	seen := map[uint16]bool{}
	for _, p := range packets {
		if seen[p.Header.SequenceNumber] {
			t.Fatalf("duplicate sequence number %d across fragments", p.Header.SequenceNumber)
		}
		seen[p.Header.SequenceNumber] = true
	}
}
