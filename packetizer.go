// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"encoding/binary"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// H264Separator selects how H264PacketizationHandler finds NAL unit
// boundaries in a sample, per spec §4.9.
type H264Separator int

const (
	// StartSequence expects Annex B start codes (0x000001 or
	// 0x00000001) between NAL units.
	StartSequence H264Separator = iota
	// Length expects each NAL unit prefixed with a 4-byte big-endian
	// length, as produced by most hardware encoders (AVCC format).
	Length
)

// newPacketizerBase builds a plain pion/rtp packetizer for cfg with
// pion's own random sequencer. The codec handlers below do not use it;
// they packetize through samplePacketizer.
func newPacketizerBase(cfg *RtpPacketizationConfig, mtu uint16, payloader rtp.Payloader) rtp.Packetizer {
	return rtp.NewPacketizer(mtu, cfg.PayloadType, cfg.Ssrc, payloader, rtp.NewRandomSequencer(), cfg.ClockRate)
}

// samplePacketizer wraps a pion/rtp.Payloader so Packetize() stamps
// through our own RtpPacketizationConfig rather than the library's
// internal sequencer/timestamp, since the config is shared with
// RtcpSrReporter (spec §4.9/§8's startTs identity) and must stay the
// single source of truth.
type samplePacketizer struct {
	cfg       *RtpPacketizationConfig
	mtu       uint16
	payloader rtp.Payloader
}

func (p *samplePacketizer) packetize(sample []byte, samples uint32) []*rtp.Packet {
	ts := p.cfg.advanceTimestamp(samples)
	payloads := p.payloader.Payload(p.mtu, sample)
	packets := make([]*rtp.Packet, 0, len(payloads))
	for i, payload := range payloads {
		packets = append(packets, &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    p.cfg.PayloadType,
				SequenceNumber: p.cfg.nextSequence(),
				Timestamp:      ts,
				SSRC:           p.cfg.Ssrc,
				Marker:         i == len(payloads)-1,
			},
			Payload: payload,
		})
	}
	return packets
}

// OpusPacketizationHandler fragments Opus samples (never more than one
// RTP packet per sample since Opus frames are self-delimiting).
type OpusPacketizationHandler struct {
	p               *samplePacketizer
	samplesPerFrame uint32
}

func NewOpusPacketizationHandler(cfg *RtpPacketizationConfig, maxFragmentSize uint16, samplesPerFrame uint32) *OpusPacketizationHandler {
	return &OpusPacketizationHandler{
		p:               &samplePacketizer{cfg: cfg, mtu: maxFragmentSize, payloader: &codecs.OpusPayloader{}},
		samplesPerFrame: samplesPerFrame,
	}
}

// Packetize fragments one Opus sample into RTP packets.
func (h *OpusPacketizationHandler) Packetize(sample []byte) []*rtp.Packet {
	return h.p.packetize(sample, h.samplesPerFrame)
}
func (h *OpusPacketizationHandler) incoming(msg *Message) *Message { return msg }
func (h *OpusPacketizationHandler) outgoing(msg *Message) *Message { return msg }

// VP8PacketizationHandler fragments VP8 frames using pion/rtp's VP8
// payloader, which handles the PictureID extension header internally.
type VP8PacketizationHandler struct {
	p *samplePacketizer
}

func NewVP8PacketizationHandler(cfg *RtpPacketizationConfig, maxFragmentSize uint16) *VP8PacketizationHandler {
	return &VP8PacketizationHandler{p: &samplePacketizer{cfg: cfg, mtu: maxFragmentSize, payloader: &codecs.VP8Payloader{EnablePictureID: true}}}
}

// Packetize fragments one VP8 frame into RTP packets; samples is
// the RTP timestamp advance for this frame (90kHz clock units).
func (h *VP8PacketizationHandler) Packetize(sample []byte, samples uint32) []*rtp.Packet {
	return h.p.packetize(sample, samples)
}
func (h *VP8PacketizationHandler) incoming(msg *Message) *Message { return msg }
func (h *VP8PacketizationHandler) outgoing(msg *Message) *Message { return msg }

// VP9PacketizationHandler fragments VP9 frames.
type VP9PacketizationHandler struct {
	p *samplePacketizer
}

func NewVP9PacketizationHandler(cfg *RtpPacketizationConfig, maxFragmentSize uint16) *VP9PacketizationHandler {
	return &VP9PacketizationHandler{p: &samplePacketizer{cfg: cfg, mtu: maxFragmentSize, payloader: &codecs.VP9Payloader{}}}
}

// Packetize fragments one VP9 frame into RTP packets; samples is
// the RTP timestamp advance for this frame (90kHz clock units).
func (h *VP9PacketizationHandler) Packetize(sample []byte, samples uint32) []*rtp.Packet {
	return h.p.packetize(sample, samples)
}
func (h *VP9PacketizationHandler) incoming(msg *Message) *Message { return msg }
func (h *VP9PacketizationHandler) outgoing(msg *Message) *Message { return msg }

// PCMUPacketizationHandler / PCMAPacketizationHandler packetize G.711
// samples; both codecs never fragment since a 20ms frame at 8kHz is
// well under any realistic MTU.
type PCMUPacketizationHandler struct{ p *samplePacketizer }
type PCMAPacketizationHandler struct{ p *samplePacketizer }

func NewPCMUPacketizationHandler(cfg *RtpPacketizationConfig, maxFragmentSize uint16) *PCMUPacketizationHandler {
	return &PCMUPacketizationHandler{p: &samplePacketizer{cfg: cfg, mtu: maxFragmentSize, payloader: &codecs.G711Payloader{}}}
}
// Packetize fragments one G.711 mu-law frame into RTP packets.
func (h *PCMUPacketizationHandler) Packetize(sample []byte, samples uint32) []*rtp.Packet {
	return h.p.packetize(sample, samples)
}
func (h *PCMUPacketizationHandler) incoming(msg *Message) *Message { return msg }
func (h *PCMUPacketizationHandler) outgoing(msg *Message) *Message { return msg }

func NewPCMAPacketizationHandler(cfg *RtpPacketizationConfig, maxFragmentSize uint16) *PCMAPacketizationHandler {
	return &PCMAPacketizationHandler{p: &samplePacketizer{cfg: cfg, mtu: maxFragmentSize, payloader: &codecs.G711Payloader{}}}
}
// Packetize fragments one G.711 a-law frame into RTP packets.
func (h *PCMAPacketizationHandler) Packetize(sample []byte, samples uint32) []*rtp.Packet {
	return h.p.packetize(sample, samples)
}
func (h *PCMAPacketizationHandler) incoming(msg *Message) *Message { return msg }
func (h *PCMAPacketizationHandler) outgoing(msg *Message) *Message { return msg }

// H264PacketizationHandler fragments an H264 access unit into RTP
// packets per RFC 6184: NAL units at or under maxFragmentSize go out
// as single NALU packets, larger ones are split into FU-A fragments.
// Unlike pion/rtp's built-in payloader (Annex B input only), this
// handler understands both of the NAL separator conventions spec §4.9
// names.
type H264PacketizationHandler struct {
	cfg             *RtpPacketizationConfig
	maxFragmentSize int
	separator       H264Separator
	samplesPerFrame uint32
}

func NewH264PacketizationHandler(cfg *RtpPacketizationConfig, maxFragmentSize int, separator H264Separator, samplesPerFrame uint32) *H264PacketizationHandler {
	return &H264PacketizationHandler{cfg: cfg, maxFragmentSize: maxFragmentSize, separator: separator, samplesPerFrame: samplesPerFrame}
}

// splitNALUs extracts individual NAL units from an access unit
// according to the handler's configured separator convention.
func (h *H264PacketizationHandler) splitNALUs(accessUnit []byte) [][]byte {
	switch h.separator {
	case Length:
		return splitLengthPrefixed(accessUnit)
	default:
		return splitAnnexB(accessUnit)
	}
}

func splitLengthPrefixed(b []byte) [][]byte {
	var nalus [][]byte
	for len(b) >= 4 {
		n := binary.BigEndian.Uint32(b[:4])
		b = b[4:]
		if int(n) > len(b) {
			break
		}
		nalus = append(nalus, b[:n])
		b = b[n:]
	}
	return nalus
}

func splitAnnexB(b []byte) [][]byte {
	starts := findStartCodes(b)
	var nalus [][]byte
	for i, s := range starts {
		end := len(b)
		if i+1 < len(starts) {
			end = starts[i+1].codeStart
		}
		if s.nalStart < end {
			nalus = append(nalus, b[s.nalStart:end])
		}
	}
	return nalus
}

type startCode struct{ codeStart, nalStart int }

func findStartCodes(b []byte) []startCode {
	var out []startCode
	for i := 0; i+2 < len(b); i++ {
		if b[i] == 0 && b[i+1] == 0 && b[i+2] == 1 {
			out = append(out, startCode{codeStart: i, nalStart: i + 3})
			i += 2
			continue
		}
		if i+3 < len(b) && b[i] == 0 && b[i+1] == 0 && b[i+2] == 0 && b[i+3] == 1 {
			out = append(out, startCode{codeStart: i, nalStart: i + 4})
			i += 3
		}
	}
	return out
}

const (
	naluTypeMask = 0x1F
	fuaNaluType  = 28
)

// Packetize fragments one H264 access unit into RTP packets per RFC
// 6184 §5.8 (FU-A), returning them with the marker bit set on the
// final packet of the access unit.
func (h *H264PacketizationHandler) Packetize(accessUnit []byte) []*rtp.Packet {
	ts := h.cfg.advanceTimestamp(h.samplesPerFrame)
	nalus := h.splitNALUs(accessUnit)

	var packets []*rtp.Packet
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		if len(nalu) <= h.maxFragmentSize {
			packets = append(packets, &rtp.Packet{
				Header:  rtp.Header{Version: 2, PayloadType: h.cfg.PayloadType, Timestamp: ts, SSRC: h.cfg.Ssrc},
				Payload: nalu,
			})
			continue
		}
		packets = append(packets, h.fragmentFUA(nalu, ts)...)
	}
	if n := len(packets); n > 0 {
		packets[n-1].Header.Marker = true
	}
	for _, p := range packets {
		p.Header.SequenceNumber = h.cfg.nextSequence()
	}
	return packets
}

func (h *H264PacketizationHandler) fragmentFUA(nalu []byte, ts uint32) []*rtp.Packet {
	naluHeader := nalu[0]
	naluType := naluHeader & naluTypeMask
	nri := naluHeader &^ naluTypeMask
	payload := nalu[1:]

	maxChunk := h.maxFragmentSize - 2 // FU indicator + FU header
	if maxChunk < 1 {
		maxChunk = 1
	}

	var packets []*rtp.Packet
	for len(payload) > 0 {
		chunkSize := maxChunk
		if chunkSize > len(payload) {
			chunkSize = len(payload)
		}
		chunk := payload[:chunkSize]
		payload = payload[chunkSize:]

		fuIndicator := nri | fuaNaluType
		fuHeader := naluType
		if len(packets) == 0 {
			fuHeader |= 0x80 // start bit
		}
		if len(payload) == 0 {
			fuHeader |= 0x40 // end bit
		}

		buf := make([]byte, 2+len(chunk))
		buf[0] = fuIndicator
		buf[1] = fuHeader
		copy(buf[2:], chunk)

		packets = append(packets, &rtp.Packet{
			Header:  rtp.Header{Version: 2, PayloadType: h.cfg.PayloadType, Timestamp: ts, SSRC: h.cfg.Ssrc},
			Payload: buf,
		})
	}
	return packets
}

func (h *H264PacketizationHandler) incoming(msg *Message) *Message { return msg }
func (h *H264PacketizationHandler) outgoing(msg *Message) *Message { return msg }
