// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

// Stats is a point-in-time snapshot of a PeerConnection's transport
// states and per-channel/per-track counters, meant for periodic
// capture by a caller that holds a PeerConnection rather than
// continuous polling (spec §12 supplemented feature: the library
// itself never serializes or transmits Stats).
type Stats struct {
	State          string `cbor:"state"`
	SignalingState string `cbor:"signaling_state"`

	IceState  string `cbor:"ice_state,omitempty"`
	DtlsState string `cbor:"dtls_state,omitempty"`
	SctpState string `cbor:"sctp_state,omitempty"`
	SrtpState string `cbor:"srtp_state,omitempty"`

	LocalCandidate  string `cbor:"local_candidate,omitempty"`
	RemoteCandidate string `cbor:"remote_candidate,omitempty"`

	Channels []ChannelStats `cbor:"channels,omitempty"`
	Tracks   []TrackStats   `cbor:"tracks,omitempty"`
}

// ChannelStats reports one DataChannel's queue backlog at snapshot
// time.
type ChannelStats struct {
	Label          string `cbor:"label"`
	StreamID       uint16 `cbor:"stream_id"`
	State          string `cbor:"state"`
	BufferedAmount int    `cbor:"buffered_amount"`
}

// TrackStats reports one Track's sender-report counters, when
// EnableSenderReports has been called; PacketCount/OctetCount are zero
// otherwise.
type TrackStats struct {
	Mid         string `cbor:"mid"`
	Kind        string `cbor:"kind"`
	PacketCount uint32 `cbor:"packet_count"`
	OctetCount  uint32 `cbor:"octet_count"`
}

func (s DataChannelState) statsString() string {
	switch s {
	case DataChannelConnecting:
		return "connecting"
	case DataChannelOpen:
		return "open"
	case DataChannelClosing:
		return "closing"
	case DataChannelClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stats captures the current transport states and per-channel/
// per-track counters. Safe to call at any time, including after Close.
func (pc *PeerConnection) Stats() Stats {
	pc.mu.Lock()
	s := Stats{
		State:          pc.state.String(),
		SignalingState: pc.signalingStateString(),
	}
	ice, dtls, srtp, sctp := pc.ice, pc.dtls, pc.srtp, pc.sctp
	pc.mu.Unlock()

	if ice != nil {
		s.IceState = ice.state().String()
		if local, remote, err := ice.SelectedPair(); err == nil {
			s.LocalCandidate = local.String()
			s.RemoteCandidate = remote.String()
		}
	}
	if dtls != nil {
		s.DtlsState = dtls.state().String()
	}
	if srtp != nil {
		s.SrtpState = srtp.state().String()
	}
	if sctp != nil {
		s.SctpState = sctp.state().String()
	}

	for _, dc := range pc.registry.allChannels() {
		s.Channels = append(s.Channels, ChannelStats{
			Label:          dc.Label(),
			StreamID:       dc.StreamID(),
			State:          dc.State().statsString(),
			BufferedAmount: dc.BufferedAmount(),
		})
	}
	for _, tr := range pc.registry.allTracks() {
		ts := TrackStats{Mid: tr.Mid(), Kind: tr.Kind().String()}
		tr.mu.Lock()
		if tr.srReporter != nil {
			tr.srReporter.mu.Lock()
			ts.PacketCount = tr.srReporter.packetCount
			ts.OctetCount = tr.srReporter.octetCount
			tr.srReporter.mu.Unlock()
		}
		tr.mu.Unlock()
		s.Tracks = append(s.Tracks, ts)
	}
	return s
}

func (pc *PeerConnection) signalingStateString() string {
	switch pc.signalingState {
	case SignalingStable:
		return "stable"
	case SignalingHaveLocalOffer:
		return "have-local-offer"
	case SignalingHaveRemoteOffer:
		return "have-remote-offer"
	default:
		return "unknown"
	}
}
