// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"sync"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"

	"github.com/corvid-labs/rtc/rtcerr"
)

// Track is the user endpoint for one audio/video m-line: RTP/RTCP I/O
// plus ownership of its media-handler chain (spec §3/§4.9). Opened
// when the containing SRTP transport reaches Connected, closed when
// the PeerConnection closes or the user closes the track.
type Track struct {
	mu     sync.Mutex
	mid    string
	kind   MediaKind
	rtpMap RtpMap

	cfg   *RtpPacketizationConfig
	chain *mediaHandlerChain

	srtp   *DtlsSrtpTransport
	closed bool

	srReporter   *RtcpSrReporter
	nackResponder *RtcpNackResponder

	onMessage func(*Message)
	onError   func(error)
}

// newTrack is called by PeerConnection, which owns the registry
// mapping mid to Track (spec §9's explicit-ownership pattern — Track
// holds no back-pointer to PeerConnection).
func newTrack(mid string, kind MediaKind, rtpMap RtpMap, cfg *RtpPacketizationConfig) *Track {
	t := &Track{
		mid:    mid,
		kind:   kind,
		rtpMap: rtpMap,
		cfg:    cfg,
		chain:  newMediaHandlerChain(),
	}
	return t
}

// Mid returns the media section identifier this track is bound to.
func (t *Track) Mid() string { return t.mid }

// Kind returns MediaAudio or MediaVideo.
func (t *Track) Kind() MediaKind { return t.kind }

// Config returns the track's RtpPacketizationConfig, consulted by
// packetization handlers and by callers needing the current
// SSRC/timestamp (spec §3).
func (t *Track) Config() *RtpPacketizationConfig { return t.cfg }

// AddMediaHandler appends a handler to the end of the outbound chain
// (and, symmetrically, the start of the inbound chain) per spec §4.9.
func (t *Track) AddMediaHandler(h MediaHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chain.add(h)
}

// EnableSenderReports installs an RtcpSrReporter that emits SRs over
// this track's SRTCP session, per spec §4.9.
func (t *Track) EnableSenderReports() *RtcpSrReporter {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.srReporter != nil {
		return t.srReporter
	}
	t.srReporter = NewRtcpSrReporter(t.cfg, t.sendRTCPPacket)
	return t.srReporter
}

// EnableNackResponses installs an RtcpNackResponder in the outbound
// chain so retransmit requests for recently sent packets are honored
// (spec §4.9).
func (t *Track) EnableNackResponses() *RtcpNackResponder {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.nackResponder != nil {
		return t.nackResponder
	}
	t.nackResponder = NewRtcpNackResponder(t.writeRTP)
	t.chain.add(t.nackResponder)
	return t.nackResponder
}

// EnableNackGeneration installs a NackGeneratorHandler in the inbound
// chain so sequence gaps on received RTP trigger an outbound NACK
// (supplemented feature, see SPEC_FULL.md §12).
func (t *Track) EnableNackGeneration() *NackGeneratorHandler {
	gen := NewNackGeneratorHandler(func(nack *rtcp.TransportLayerNack) error {
		buf, err := nack.Marshal()
		if err != nil {
			return err
		}
		return t.writeRTCP(nack.SenderSSRC, buf)
	})
	t.mu.Lock()
	t.chain.add(gen)
	t.mu.Unlock()
	return gen
}

// bindTransport attaches the SRTP transport this track sends and
// receives over, called by PeerConnection once the transport reaches
// Connected.
func (t *Track) bindTransport(s *DtlsSrtpTransport) {
	t.mu.Lock()
	t.srtp = s
	t.mu.Unlock()
	s.mu.Lock()
	prev := s.onSsrcPacket
	s.onSsrcPacket = func(ssrc uint32, payload []byte) {
		if prev != nil {
			prev(ssrc, payload)
		}
		t.handleSsrcPacket(ssrc, payload)
	}
	s.mu.Unlock()
}

func (t *Track) handleSsrcPacket(ssrc uint32, payload []byte) {
	t.mu.Lock()
	if t.closed || ssrc != t.cfg.Ssrc {
		t.mu.Unlock()
		return
	}
	chain := t.chain
	cb := t.onMessage
	t.mu.Unlock()

	msg := chain.processIncoming(&Message{Type: Binary, Payload: payload})
	if msg != nil && cb != nil {
		cb(msg)
	}
}

// SendSample sends one codec sample's worth of already-packetized RTP
// packets through the outbound handler chain. Callers get packets from
// one of the NewXPacketizationHandler constructors' Packetize method,
// e.g. tr.SendSample(opusHandler.Packetize(frame)); packetization
// itself is not a *Message -> *Message transform, so it happens
// before the chain rather than as a chain link.
func (t *Track) SendSample(packets []*rtp.Packet) error {
	t.mu.Lock()
	s := t.srtp
	closed := t.closed
	reporter := t.srReporter
	chain := t.chain
	t.mu.Unlock()

	if closed {
		return rtcerr.New(rtcerr.Closed, "Track.SendSample")
	}
	if s == nil {
		return rtcerr.New(rtcerr.NotOpen, "Track.SendSample")
	}

	for _, pkt := range packets {
		raw, err := pkt.Marshal()
		if err != nil {
			return rtcerr.Wrap(rtcerr.ProtocolError, "Track.SendSample", err)
		}
		msg := chain.processOutgoing(&Message{Type: Binary, Payload: raw})
		if msg == nil {
			continue
		}
		if err := s.WriteRTP(pkt.SSRC, msg.Payload); err != nil {
			return err
		}
		if reporter != nil {
			reporter.accumulate(len(msg.Payload))
		}
	}
	return nil
}

func (t *Track) writeRTP(payload []byte) error {
	t.mu.Lock()
	s := t.srtp
	t.mu.Unlock()
	if s == nil {
		return rtcerr.New(rtcerr.NotOpen, "Track.writeRTP")
	}
	return s.WriteRTP(t.cfg.Ssrc, payload)
}

func (t *Track) writeRTCP(ssrc uint32, payload []byte) error {
	t.mu.Lock()
	s := t.srtp
	t.mu.Unlock()
	if s == nil {
		return rtcerr.New(rtcerr.NotOpen, "Track.writeRTCP")
	}
	return s.WriteRTCP(payload)
}

// sendRTCPPacket marshals pkt before handing it to writeRTCP; used as
// the RtcpSrReporter callback, which deals in rtcp.Packet values
// rather than raw bytes.
func (t *Track) sendRTCPPacket(pkt rtcp.Packet) error {
	buf, err := pkt.Marshal()
	if err != nil {
		return rtcerr.Wrap(rtcerr.ProtocolError, "Track.sendRTCPPacket", err)
	}
	return t.writeRTCP(t.cfg.Ssrc, buf)
}

// OnMessage installs the callback invoked for each inbound,
// handler-chain-processed RTP packet.
func (t *Track) OnMessage(fn func(*Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = fn
}

func (t *Track) OnError(fn func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = fn
}

// Close tears down reporting timers and marks the track unusable for
// further sends; the underlying SRTP session is owned and closed by
// PeerConnection, not by the track itself.
func (t *Track) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	reporter := t.srReporter
	t.mu.Unlock()

	if reporter != nil {
		reporter.stop()
	}
	return nil
}
