// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/randutil"
	"github.com/pion/sdp/v3"

	"github.com/corvid-labs/rtc/rtcerr"
)

// ToSDP renders d as UTF-8 SDP text. This is the only place pion/sdp's
// grammar is touched outside ParseSDP; everywhere else in the module
// consumes or produces a Description (spec §1).
func (d *Description) ToSDP() (string, error) {
	sess := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      randutil.NewMathRandomGenerator().Uint64(),
			SessionVersion: 2,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: "0.0.0.0",
		},
		SessionName: "-",
		TimeDescriptions: []sdp.TimeDescription{{Timing: sdp.Timing{StartTime: 0, StopTime: 0}}},
	}

	groupMids := make([]string, 0, len(d.Media))
	for _, m := range d.Media {
		groupMids = append(groupMids, m.Mid)
		md := mediaToSDP(m, d)
		sess.MediaDescriptions = append(sess.MediaDescriptions, md)
	}
	if len(groupMids) > 0 {
		sess.WithValueAttribute("group", "BUNDLE "+strings.Join(groupMids, " "))
	}

	raw, err := sess.Marshal()
	if err != nil {
		return "", rtcerr.Wrap(rtcerr.ProtocolError, "Description.ToSDP", err)
	}
	return string(raw), nil
}

func mediaToSDP(m MediaDescription, d *Description) *sdp.MediaDescription {
	md := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   m.Kind.String(),
			Protocol: protocolFor(m.Kind),
		},
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: "0.0.0.0"},
		},
	}
	md.WithValueAttribute("mid", m.Mid)
	md.WithPropertyAttribute(m.Direction.String())
	md.WithValueAttribute("ice-ufrag", d.IceUfrag)
	md.WithValueAttribute("ice-pwd", d.IcePwd)
	md.WithValueAttribute("setup", d.Setup)
	if d.Fingerprint != "" {
		md.WithValueAttribute("fingerprint", d.Fingerprint)
	}

	for _, c := range d.Candidates {
		if c.Mid == m.Mid {
			md.WithValueAttribute("candidate", c.Value)
		}
	}

	if m.Kind == MediaApplication {
		md.MediaName.Formats = []string{"webrtc-datachannel"}
		md.WithValueAttribute("sctp-port", strconv.Itoa(int(m.SctpPort)))
		return md
	}

	formats := make([]string, 0, len(m.RtpMaps))
	for _, rm := range m.RtpMaps {
		pt := strconv.Itoa(int(rm.PayloadType))
		formats = append(formats, pt)
		md.WithValueAttribute("rtpmap", fmt.Sprintf("%s %s/%d", pt, rm.Codec, rm.ClockRate))
	}
	md.MediaName.Formats = formats

	for _, s := range m.Ssrcs {
		md.WithValueAttribute("ssrc", fmt.Sprintf("%d cname:%s", s.Ssrc, s.Cname))
	}
	return md
}

func protocolFor(k MediaKind) string {
	if k == MediaApplication {
		return "UDP/DTLS/SCTP"
	}
	return "UDP/TLS/RTP/SAVPF"
}

// ParseSDP parses raw SDP text of the given type into a Description.
// Session-level ice-ufrag/pwd/fingerprint/setup are read as a fallback
// when a media section doesn't repeat them, matching how most
// encoders emit them once at the session level (spec §4 names a
// single pair per Description, so the first value found wins).
func ParseSDP(raw string, descType DescriptionType) (*Description, error) {
	var sess sdp.SessionDescription
	if err := sess.Unmarshal([]byte(raw)); err != nil {
		return nil, rtcerr.Wrap(rtcerr.ProtocolError, "ParseSDP", err)
	}

	d := &Description{Type: descType}
	sessionUfrag, _ := sess.Attribute("ice-ufrag")
	sessionPwd, _ := sess.Attribute("ice-pwd")
	sessionFp, _ := sess.Attribute("fingerprint")
	sessionSetup, _ := sess.Attribute("setup")

	for _, md := range sess.MediaDescriptions {
		mid, _ := md.Attribute("mid")
		section := MediaDescription{Mid: mid, Kind: mediaKindFromString(md.MediaName.Media)}
		section.Direction = directionFromAttributes(md)

		if ufrag, ok := md.Attribute("ice-ufrag"); ok && d.IceUfrag == "" {
			d.IceUfrag = ufrag
		} else if d.IceUfrag == "" {
			d.IceUfrag = sessionUfrag
		}
		if pwd, ok := md.Attribute("ice-pwd"); ok && d.IcePwd == "" {
			d.IcePwd = pwd
		} else if d.IcePwd == "" {
			d.IcePwd = sessionPwd
		}
		if fp, ok := md.Attribute("fingerprint"); ok && d.Fingerprint == "" {
			d.Fingerprint = fp
		} else if d.Fingerprint == "" {
			d.Fingerprint = sessionFp
		}
		if setup, ok := md.Attribute("setup"); ok && d.Setup == "" {
			d.Setup = setup
		} else if d.Setup == "" {
			d.Setup = sessionSetup
		}

		for _, a := range md.Attributes {
			switch a.Key {
			case "candidate":
				d.Candidates = append(d.Candidates, IceCandidate{Mid: mid, Value: a.Value})
			case "rtpmap":
				if rm, err := parseRtpmap(a.Value); err == nil {
					section.RtpMaps = append(section.RtpMaps, rm)
				}
			case "ssrc":
				if se, err := parseSsrc(a.Value); err == nil {
					section.Ssrcs = append(section.Ssrcs, se)
				}
			case "sctp-port":
				if port, err := strconv.Atoi(a.Value); err == nil {
					section.SctpPort = uint16(port)
					section.RemoteSctpPort = uint16(port)
				}
			}
		}

		d.Media = append(d.Media, section)
	}

	if err := d.Validate(); err != nil {
		return nil, rtcerr.Wrap(rtcerr.ProtocolError, "ParseSDP", err)
	}
	return d, nil
}

func mediaKindFromString(s string) MediaKind {
	switch s {
	case "audio":
		return MediaAudio
	case "video":
		return MediaVideo
	default:
		return MediaApplication
	}
}

func directionFromAttributes(md *sdp.MediaDescription) Direction {
	for _, a := range md.Attributes {
		switch a.Key {
		case "sendrecv":
			return SendRecv
		case "sendonly":
			return SendOnly
		case "recvonly":
			return RecvOnly
		case "inactive":
			return Inactive
		}
	}
	return SendRecv
}

func parseRtpmap(v string) (RtpMap, error) {
	// "<payload-type> <codec>/<clock-rate>[/<channels>]"
	parts := strings.SplitN(v, " ", 2)
	if len(parts) != 2 {
		return RtpMap{}, fmt.Errorf("rtc: malformed rtpmap %q", v)
	}
	pt, err := strconv.Atoi(parts[0])
	if err != nil {
		return RtpMap{}, err
	}
	codecParts := strings.Split(parts[1], "/")
	if len(codecParts) < 2 {
		return RtpMap{}, fmt.Errorf("rtc: malformed rtpmap codec %q", parts[1])
	}
	rate, err := strconv.Atoi(codecParts[1])
	if err != nil {
		return RtpMap{}, err
	}
	return RtpMap{PayloadType: byte(pt), Codec: codecParts[0], ClockRate: uint32(rate)}, nil
}

func parseSsrc(v string) (SsrcEntry, error) {
	// "<ssrc> cname:<cname>"
	parts := strings.SplitN(v, " ", 2)
	ssrc, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return SsrcEntry{}, err
	}
	entry := SsrcEntry{Ssrc: uint32(ssrc)}
	if len(parts) == 2 {
		entry.Cname = strings.TrimPrefix(parts[1], "cname:")
	}
	return entry, nil
}
