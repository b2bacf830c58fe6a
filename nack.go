// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"sync"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// nackRetainedPackets bounds RtcpNackResponder's retransmit buffer:
// spec §4.9 says "the last N transmitted RTP packets", without naming
// N; 512 covers several video frames' worth of packets at typical
// bitrates without unbounded growth.
const nackRetainedPackets = 512

// RtcpNackResponder retains recently transmitted RTP packets indexed
// by sequence number and retransmits any a peer's RTCP NACK still
// names, if still buffered (spec §4.9).
type RtcpNackResponder struct {
	mu      sync.Mutex
	buffer  map[uint16][]byte
	order   []uint16 // eviction order, oldest first

	sendRTP func(payload []byte) error
}

func NewRtcpNackResponder(sendRTP func(payload []byte) error) *RtcpNackResponder {
	return &RtcpNackResponder{
		buffer:  make(map[uint16][]byte, nackRetainedPackets),
		sendRTP: sendRTP,
	}
}

func (h *RtcpNackResponder) outgoing(msg *Message) *Message {
	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(msg.Payload); err == nil {
		h.retain(pkt.SequenceNumber, msg.Payload)
	}
	return msg
}

func (h *RtcpNackResponder) incoming(msg *Message) *Message {
	pkts, err := rtcp.Unmarshal(msg.Payload)
	if err != nil {
		return msg
	}
	for _, p := range pkts {
		if nack, ok := p.(*rtcp.TransportLayerNack); ok {
			h.handleNack(nack)
		}
	}
	return msg
}

func (h *RtcpNackResponder) retain(seq uint16, raw []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := make([]byte, len(raw))
	copy(cp, raw)
	if _, exists := h.buffer[seq]; !exists {
		h.order = append(h.order, seq)
	}
	h.buffer[seq] = cp
	for len(h.order) > nackRetainedPackets {
		evict := h.order[0]
		h.order = h.order[1:]
		delete(h.buffer, evict)
	}
}

// handleNack retransmits every sequence number named in nack that is
// still in the buffer; missing sequences are silently skipped (spec
// §4.9: "if still buffered").
func (h *RtcpNackResponder) handleNack(nack *rtcp.TransportLayerNack) {
	h.mu.Lock()
	var toSend [][]byte
	for _, pair := range nack.Nacks {
		for _, seq := range pair.PacketList() {
			if raw, ok := h.buffer[seq]; ok {
				toSend = append(toSend, raw)
			}
		}
	}
	h.mu.Unlock()

	if h.sendRTP == nil {
		return
	}
	for _, raw := range toSend {
		_ = h.sendRTP(raw)
	}
}

// NackGeneratorHandler watches inbound sequence numbers per SSRC and
// emits an RTCP NACK on a gap (supplemented feature, spec.md §4.9 only
// specifies the responder half; the generator completes scenario 5's
// round trip).
type NackGeneratorHandler struct {
	mu       sync.Mutex
	lastSeen map[uint32]uint16
	seen     map[uint32]bool

	sendNack func(nack *rtcp.TransportLayerNack) error
}

func NewNackGeneratorHandler(sendNack func(nack *rtcp.TransportLayerNack) error) *NackGeneratorHandler {
	return &NackGeneratorHandler{
		lastSeen: make(map[uint32]uint16),
		seen:     make(map[uint32]bool),
		sendNack: sendNack,
	}
}

func (h *NackGeneratorHandler) incoming(msg *Message) *Message {
	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(msg.Payload); err != nil {
		return msg
	}

	h.mu.Lock()
	last, hasLast := h.lastSeen[pkt.SSRC]
	h.lastSeen[pkt.SSRC] = pkt.SequenceNumber
	h.mu.Unlock()

	if hasLast {
		missing := missingSequences(last, pkt.SequenceNumber)
		if len(missing) > 0 && h.sendNack != nil {
			_ = h.sendNack(&rtcp.TransportLayerNack{
				SenderSSRC: pkt.SSRC,
				MediaSSRC:  pkt.SSRC,
				Nacks:      rtcp.NackPairsFromSequenceNumbers(missing),
			})
		}
	}
	return msg
}

func (h *NackGeneratorHandler) outgoing(msg *Message) *Message { return msg }

// missingSequences returns the sequence numbers strictly between last
// and current, accounting for 16-bit wraparound. A gap larger than 32
// is assumed to be a restart rather than loss and is not reported, to
// avoid flooding a NACK for every sequence since a renegotiation.
func missingSequences(last, current uint16) []uint16 {
	gap := current - last
	if gap == 0 || gap > 32 {
		return nil
	}
	var missing []uint16
	for s := last + 1; s != current; s++ {
		missing = append(missing, s)
	}
	return missing
}
