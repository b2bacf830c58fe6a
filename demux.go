// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

// demuxClass classifies one received datagram by its first byte per
// RFC 7983 (spec §4.1): STUN routes to ICE, DTLS is consumed locally,
// TURN channel data is handled by the ICE/TURN layer, and RTP/RTCP
// routes to SRTP. Anything else is dropped and counted.
type demuxClass int

const (
	demuxUnknown demuxClass = iota
	demuxSTUN
	demuxDTLS
	demuxTURNChannel
	demuxRTP
)

// classifyFirstByte implements the RFC 7983 dispatch table as an
// explicit function rather than a callback chain, per the §9 design
// note calling for an explicit dispatch table keyed on the first
// byte's range.
func classifyFirstByte(b byte) demuxClass {
	switch {
	case b <= 3:
		return demuxSTUN
	case b >= 20 && b <= 63:
		return demuxDTLS
	case b >= 64 && b <= 79:
		return demuxTURNChannel
	case b >= 128 && b <= 191:
		return demuxRTP
	default:
		return demuxUnknown
	}
}
