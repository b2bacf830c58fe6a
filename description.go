// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import "fmt"

// DescriptionType is the literal SDP type string exchanged alongside a
// Description. See spec §6.
type DescriptionType string

const (
	Offer    DescriptionType = "offer"
	Answer   DescriptionType = "answer"
	PrAnswer DescriptionType = "pranswer"
	Rollback DescriptionType = "rollback"
)

// MediaKind is the m-line media type.
type MediaKind int

const (
	MediaAudio MediaKind = iota
	MediaVideo
	MediaApplication
)

func (k MediaKind) String() string {
	switch k {
	case MediaAudio:
		return "audio"
	case MediaVideo:
		return "video"
	case MediaApplication:
		return "application"
	default:
		return "unknown"
	}
}

// Direction is the a=sendrecv/sendonly/recvonly/inactive attribute of a
// media section.
type Direction int

const (
	SendRecv Direction = iota
	SendOnly
	RecvOnly
	Inactive
)

func (d Direction) String() string {
	switch d {
	case SendRecv:
		return "sendrecv"
	case SendOnly:
		return "sendonly"
	case RecvOnly:
		return "recvonly"
	case Inactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// RtpMap binds a payload type number to a codec name and clock rate,
// e.g. {102, "H264", 90000}.
type RtpMap struct {
	PayloadType byte
	Codec       string
	ClockRate   uint32
}

// SsrcEntry associates an SSRC with an optional cname, one per media
// source advertised in a section.
type SsrcEntry struct {
	Ssrc  uint32
	Cname string
}

// MediaDescription is one m-line. For MediaApplication sections,
// SctpPort and RemoteSctpPort carry the a=sctp-port values (spec §3);
// they are zero for audio/video sections.
type MediaDescription struct {
	Mid       string
	Kind      MediaKind
	Direction Direction

	RtpMaps []RtpMap
	Ssrcs   []SsrcEntry

	SctpPort       uint16
	RemoteSctpPort uint16
}

// Description is the product of SDP offer/answer: an ordered list of
// media sections plus the session-level fields every transport needs
// to start (ICE credentials, DTLS fingerprint, setup role). It never
// carries the raw SDP text past construction; ToSDP/ParseSDP (sdp.go)
// are the only places pion/sdp is touched, per spec §1.
type Description struct {
	Type DescriptionType

	Media []MediaDescription

	// IceUfrag/IcePwd are session-level unless a media section
	// overrides them; this module never emits per-media ICE
	// credentials, so one pair suffices.
	IceUfrag string
	IcePwd   string

	// Fingerprint is the peer's DTLS certificate fingerprint
	// ("sha-256 AA:BB:...") as advertised in a=fingerprint.
	Fingerprint string

	// Setup is the a=setup value: "active", "passive", or "actpass".
	// See spec §4.5 for how DtlsTransport derives its role from this.
	Setup string

	Candidates []IceCandidate
}

// Validate checks the two invariants spec §3 states for a Description:
// mid values unique, and payload-type numbers unique within each media
// section.
func (d *Description) Validate() error {
	seenMid := make(map[string]bool, len(d.Media))
	for _, m := range d.Media {
		if seenMid[m.Mid] {
			return fmt.Errorf("rtc: Description: duplicate mid %q", m.Mid)
		}
		seenMid[m.Mid] = true

		seenPT := make(map[byte]bool, len(m.RtpMaps))
		for _, rm := range m.RtpMaps {
			if seenPT[rm.PayloadType] {
				return fmt.Errorf("rtc: Description: mid %q: duplicate payload type %d", m.Mid, rm.PayloadType)
			}
			seenPT[rm.PayloadType] = true
		}
	}
	return nil
}

// MediaByMid looks up a section by mid.
func (d *Description) MediaByMid(mid string) (*MediaDescription, bool) {
	for i := range d.Media {
		if d.Media[i].Mid == mid {
			return &d.Media[i], true
		}
	}
	return nil, false
}

// ApplicationMedia returns the first application (SCTP) section, if
// any. A Description carries at most one: spec §3/§4.6 treat the data
// channel transport as a single fixed association.
func (d *Description) ApplicationMedia() (*MediaDescription, bool) {
	for i := range d.Media {
		if d.Media[i].Kind == MediaApplication {
			return &d.Media[i], true
		}
	}
	return nil, false
}

// IceCandidate is one gathered or received ICE candidate line, tagged
// with the mid it was gathered for. Immutable once constructed; see
// spec §3.
type IceCandidate struct {
	Mid   string
	Value string
}
