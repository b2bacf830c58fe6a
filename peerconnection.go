// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/randutil"

	"github.com/corvid-labs/rtc/cert"
	"github.com/corvid-labs/rtc/internal/processor"
	"github.com/corvid-labs/rtc/rtcerr"
)

// PeerConnectionState aggregates every transport's state into the one
// state machine users observe (spec §4.7): New → Connecting →
// Connected → Disconnected → Failed, and terminal Closed.
type PeerConnectionState int

const (
	PeerConnectionNew PeerConnectionState = iota
	PeerConnectionConnecting
	PeerConnectionConnected
	PeerConnectionDisconnected
	PeerConnectionFailed
	PeerConnectionClosed
)

func (s PeerConnectionState) String() string {
	switch s {
	case PeerConnectionNew:
		return "new"
	case PeerConnectionConnecting:
		return "connecting"
	case PeerConnectionConnected:
		return "connected"
	case PeerConnectionDisconnected:
		return "disconnected"
	case PeerConnectionFailed:
		return "failed"
	case PeerConnectionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SignalingState tracks offer/answer progress, enough to reject an
// out-of-order setRemoteDescription (spec §4.7: "answer only permitted
// after a local offer").
type SignalingState int

const (
	SignalingStable SignalingState = iota
	SignalingHaveLocalOffer
	SignalingHaveRemoteOffer
)

// pendingDataChannel is a DataChannel created before the SCTP
// association exists; PeerConnection finalizes it (assigns the real
// stream id, issues OPEN) once the association comes up.
type pendingDataChannel struct {
	dc             *DataChannel
	presetStreamID uint16
	hasPreset      bool
}

type pendingTrack struct {
	tr  *Track
	md  MediaDescription
}

// PeerConnection is the top-level orchestrator spec §4.7 names: one
// shared transport pipeline (ICE → DTLS → SCTP and DTLS → SRTP,
// bundled on a single 5-tuple) multiplexing any number of DataChannels
// and Tracks.
type PeerConnection struct {
	mu  sync.Mutex
	cfg Configuration

	certificate  *cert.Certificate
	ownsCertificate bool

	registry *channelRegistry
	pool     *processor.Pool

	state          PeerConnectionState
	signalingState SignalingState
	isOfferer      bool
	closed         bool

	ice  *IceTransport
	mux  *pipelineMux
	dtls *DtlsTransport
	srtp *DtlsSrtpTransport
	sctp *SctpTransport

	localDesc  *Description
	remoteDesc *Description

	applicationMid string
	nextTrackMid   int

	pendingChannels []*pendingDataChannel
	pendingTracks   []*pendingTrack

	negotiationTimer *time.Timer

	onLocalDescription func(*Description)
	onIceCandidate     func(IceCandidate)
	onStateChange      func(PeerConnectionState)
	onDataChannel      func(*DataChannel)
	onTrack            func(*Track)
	onError            func(error)
}

// NewPeerConnection builds a PeerConnection bound to cfg. If
// cfg.Certificate is nil, a fresh ephemeral identity is generated and
// owned (closed) by this PeerConnection.
func NewPeerConnection(cfg Configuration) (*PeerConnection, error) {
	c := cfg.Certificate
	ownsCert := false
	if c == nil {
		generated, err := cert.Generate("rtc-peer", 365*24*time.Hour)
		if err != nil {
			return nil, rtcerr.Wrap(rtcerr.TransportFailed, "NewPeerConnection", err)
		}
		c = generated
		ownsCert = true
	}

	pc := &PeerConnection{
		cfg:             cfg,
		certificate:     c,
		ownsCertificate: ownsCert,
		registry:        newChannelRegistry(),
		pool:            processor.NewPool(4),
		state:           PeerConnectionNew,
		signalingState:  SignalingStable,
		applicationMid:  "application",
	}
	return pc, nil
}

// State returns the current aggregate PeerConnectionState.
func (pc *PeerConnection) State() PeerConnectionState {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.state
}

func (pc *PeerConnection) setState(s PeerConnectionState) {
	pc.mu.Lock()
	if pc.state == PeerConnectionClosed {
		pc.mu.Unlock()
		return
	}
	pc.state = s
	cb := pc.onStateChange
	pc.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

func (pc *PeerConnection) OnStateChange(fn func(PeerConnectionState)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onStateChange = fn
}
func (pc *PeerConnection) OnLocalDescription(fn func(*Description)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onLocalDescription = fn
}
func (pc *PeerConnection) OnIceCandidate(fn func(IceCandidate)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onIceCandidate = fn
}
func (pc *PeerConnection) OnDataChannel(fn func(*DataChannel)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onDataChannel = fn
}
func (pc *PeerConnection) OnTrack(fn func(*Track)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onTrack = fn
}
func (pc *PeerConnection) OnError(fn func(error)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onError = fn
}

func (pc *PeerConnection) reportError(err error) {
	pc.mu.Lock()
	cb := pc.onError
	pc.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

// ensureIce builds the single shared IceTransport on first use. The
// offerer controls (spec §4.4: "Role ... derived from offer/answer
// order").
func (pc *PeerConnection) ensureIce() error {
	if pc.ice != nil {
		return nil
	}
	ice, err := NewIceTransport(pc.cfg, "0", pc.isOfferer)
	if err != nil {
		return err
	}
	ice.OnCandidate(func(c IceCandidate) {
		pc.mu.Lock()
		cb := pc.onIceCandidate
		pc.mu.Unlock()
		if cb != nil {
			cb(c)
		}
	})
	ice.onState(func(s TransportState) {
		pc.onIceStateChange(s)
	})
	pc.ice = ice
	return ice.GatherCandidates()
}

func (pc *PeerConnection) onIceStateChange(s TransportState) {
	switch s {
	case Connecting:
		pc.setState(PeerConnectionConnecting)
	case Connected, Completed:
		go pc.startDtlsIfReady()
	case Failed:
		pc.setState(PeerConnectionFailed)
	case Disconnected:
		pc.setState(PeerConnectionDisconnected)
	}
}

// CreateDataChannel creates a new DataChannel. If the SCTP association
// is not yet established the channel starts in Connecting and is
// finalized (assigned a stream id, DCEP handshake started) once the
// association comes up; sends before then are buffered (spec §4.8).
func (pc *PeerConnection) CreateDataChannel(label, protocol string, reliability Reliability) (*DataChannel, error) {
	return pc.createDataChannel(label, protocol, reliability, false, 0)
}

// CreateNegotiatedDataChannel creates a channel whose stream id is
// agreed out of band rather than chosen by DCEP's asymmetric rule
// (spec §4.8's "negotiated mode").
func (pc *PeerConnection) CreateNegotiatedDataChannel(label, protocol string, reliability Reliability, streamID uint16) (*DataChannel, error) {
	return pc.createDataChannel(label, protocol, reliability, true, streamID)
}

func (pc *PeerConnection) createDataChannel(label, protocol string, reliability Reliability, negotiated bool, streamID uint16) (*DataChannel, error) {
	pc.mu.Lock()
	if pc.closed {
		pc.mu.Unlock()
		return nil, rtcerr.New(rtcerr.Closed, "PeerConnection.CreateDataChannel")
	}
	dc := newDataChannel(label, protocol, reliability, negotiated, streamID)
	sctp := pc.sctp
	pc.mu.Unlock()

	if sctp != nil {
		if err := pc.finalizeChannel(dc, negotiated, streamID); err != nil {
			return nil, err
		}
	} else {
		pc.mu.Lock()
		pc.pendingChannels = append(pc.pendingChannels, &pendingDataChannel{dc: dc, presetStreamID: streamID, hasPreset: negotiated})
		pc.mu.Unlock()
	}

	pc.scheduleNegotiation()
	return dc, nil
}

// finalizeChannel assigns the real stream id (parity per DTLS role
// unless negotiated) and binds the channel to the live SctpTransport.
func (pc *PeerConnection) finalizeChannel(dc *DataChannel, negotiated bool, presetStreamID uint16) error {
	pc.mu.Lock()
	sctp := pc.sctp
	isInitiator := true
	var streamID uint16
	if negotiated {
		streamID = presetStreamID
	} else {
		parity := uint16(1)
		if pc.dtls != nil && pc.dtls.role == dtlsRoleClient {
			parity = 0
		}
		streamID = pc.registry.nextFreeStreamID(parity)
	}
	pc.registry.registerChannel(streamID, dc)
	pc.mu.Unlock()

	if sctp == nil {
		return rtcerr.New(rtcerr.NotOpen, "PeerConnection.finalizeChannel")
	}
	return dc.bindSctp(sctp, streamID, isInitiator)
}

// AddTrack creates a Track for a new m-line carrying kind media,
// seeding its RtpPacketizationConfig with ssrc/cname/payloadType/
// clockRate (spec §3 RtpPacketizationConfig, §4.9).
func (pc *PeerConnection) AddTrack(kind MediaKind, direction Direction, rtpMap RtpMap, ssrc uint32, cname string) (*Track, error) {
	pc.mu.Lock()
	if pc.closed {
		pc.mu.Unlock()
		return nil, rtcerr.New(rtcerr.Closed, "PeerConnection.AddTrack")
	}
	pc.nextTrackMid++
	mid := fmt.Sprintf("track%d", pc.nextTrackMid)
	pc.mu.Unlock()

	if ssrc == 0 {
		ssrc = randutil.NewMathRandomGenerator().Uint32()
	}
	seq := uint32(randutil.NewMathRandomGenerator().Uint64())
	cfg := NewRtpPacketizationConfig(ssrc, cname, rtpMap.PayloadType, rtpMap.ClockRate, uint16(seq), seq)
	tr := newTrack(mid, kind, rtpMap, cfg)

	md := MediaDescription{
		Mid:       mid,
		Kind:      kind,
		Direction: direction,
		RtpMaps:   []RtpMap{rtpMap},
		Ssrcs:     []SsrcEntry{{Ssrc: ssrc, Cname: cname}},
	}

	pc.mu.Lock()
	pc.registry.registerTrack(mid, tr)
	srtp := pc.srtp
	pc.mu.Unlock()

	if srtp != nil {
		tr.bindTransport(srtp)
	} else {
		pc.mu.Lock()
		pc.pendingTracks = append(pc.pendingTracks, &pendingTrack{tr: tr, md: md})
		pc.mu.Unlock()
	}

	pc.scheduleNegotiation()
	return tr, nil
}

// scheduleNegotiation debounces a renegotiation to the end of the
// current task, per spec §4.7's auto-negotiation rule, unless the
// caller disabled it.
func (pc *PeerConnection) scheduleNegotiation() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.cfg.DisableAutoNegotiation || pc.closed {
		return
	}
	if pc.negotiationTimer != nil {
		pc.negotiationTimer.Stop()
	}
	pc.negotiationTimer = time.AfterFunc(0, func() {
		_, _ = pc.SetLocalDescription()
	})
}

// SetLocalDescription creates an offer if none exists yet, else an
// answer, listing every track's m-line (AddTrack gave each its own mid
// and, when called with ssrc 0, a random SSRC), and emits it via
// onLocalDescription (spec §4.7).
func (pc *PeerConnection) SetLocalDescription() (*Description, error) {
	pc.mu.Lock()
	if pc.closed {
		pc.mu.Unlock()
		return nil, rtcerr.New(rtcerr.Closed, "PeerConnection.SetLocalDescription")
	}
	descType := Offer
	if pc.signalingState == SignalingHaveRemoteOffer {
		descType = Answer
	} else {
		pc.isOfferer = true
	}
	pc.mu.Unlock()

	if err := pc.ensureIce(); err != nil {
		return nil, err
	}

	ufrag, pwd, err := pc.ice.LocalUserCredentials()
	if err != nil {
		return nil, err
	}

	setup := "actpass"
	if descType == Answer {
		pc.mu.Lock()
		remote := pc.remoteDesc
		pc.mu.Unlock()
		if remote != nil && remote.Setup == "active" {
			setup = "passive"
		} else {
			setup = "active"
		}
	}

	desc := &Description{
		Type:        descType,
		IceUfrag:    ufrag,
		IcePwd:      pwd,
		Fingerprint: pc.certificate.SdpFingerprint(),
		Setup:       setup,
	}

	pc.mu.Lock()
	hasApplication := len(pc.pendingChannels) > 0 || pc.sctp != nil
	if hasApplication {
		desc.Media = append(desc.Media, MediaDescription{
			Mid:      pc.applicationMid,
			Kind:     MediaApplication,
			SctpPort: defaultSctpPort,
		})
	}
	for _, pt := range pc.pendingTracks {
		desc.Media = append(desc.Media, pt.md)
	}
	desc.Media = append(desc.Media, pc.boundTrackMediaLocked()...)
	pc.localDesc = desc
	pc.signalingState = pc.nextSignalingStateAfterLocalLocked(descType)
	cb := pc.onLocalDescription
	pc.mu.Unlock()

	if cb != nil {
		cb(desc)
	}
	return desc, nil
}

// boundTrackMediaLocked reconstructs m-lines for tracks that are
// already bound to a live SRTP transport (and thus no longer in
// pendingTracks). Caller must hold pc.mu.
func (pc *PeerConnection) boundTrackMediaLocked() []MediaDescription {
	var out []MediaDescription
	for _, tr := range pc.registry.allTracks() {
		alreadyPending := false
		for _, pt := range pc.pendingTracks {
			if pt.tr == tr {
				alreadyPending = true
				break
			}
		}
		if alreadyPending {
			continue
		}
		out = append(out, MediaDescription{
			Mid:       tr.Mid(),
			Kind:      tr.Kind(),
			Direction: SendRecv,
			RtpMaps:   []RtpMap{tr.rtpMap},
			Ssrcs:     []SsrcEntry{{Ssrc: tr.cfg.Ssrc, Cname: tr.cfg.Cname}},
		})
	}
	return out
}

func (pc *PeerConnection) nextSignalingStateAfterLocalLocked(descType DescriptionType) SignalingState {
	if descType == Offer {
		return SignalingHaveLocalOffer
	}
	return SignalingStable
}

// SetRemoteDescription validates type coherence with the current
// signaling state, applies desc, and — if an application m-line is
// present — instantiates the SCTP layer once the lower transports are
// ready (spec §4.7).
func (pc *PeerConnection) SetRemoteDescription(desc *Description) error {
	if err := desc.Validate(); err != nil {
		return rtcerr.Wrap(rtcerr.ProtocolError, "PeerConnection.SetRemoteDescription", err)
	}

	pc.mu.Lock()
	if pc.closed {
		pc.mu.Unlock()
		return rtcerr.New(rtcerr.Closed, "PeerConnection.SetRemoteDescription")
	}
	if desc.Type == Answer && pc.signalingState != SignalingHaveLocalOffer {
		pc.mu.Unlock()
		return rtcerr.New(rtcerr.InvalidArgument, "PeerConnection.SetRemoteDescription: answer without a prior local offer")
	}
	if desc.Type == Offer {
		pc.isOfferer = false
	}
	pc.remoteDesc = desc
	if desc.Type == Offer {
		pc.signalingState = SignalingHaveRemoteOffer
	} else {
		pc.signalingState = SignalingStable
	}
	pc.dtls = nil // role may depend on this description's a=setup; rebuilt in startDtlsIfReady
	pc.mu.Unlock()

	pc.acceptRemoteTracks(desc)

	if err := pc.ensureIce(); err != nil {
		return err
	}
	for _, c := range desc.Candidates {
		if err := pc.ice.AddRemoteCandidate(c.Value); err != nil {
			return err
		}
	}

	go func() {
		if err := pc.ice.connect(context.Background(), desc.IceUfrag, desc.IcePwd, pc.cfg.GatheringTimeout); err != nil {
			pc.setState(PeerConnectionFailed)
			pc.reportError(err)
		}
	}()

	if desc.Type == Offer {
		if _, err := pc.SetLocalDescription(); err != nil {
			return err
		}
	}
	return nil
}

// acceptRemoteTracks scans desc for audio/video m-lines the local side
// never claimed with AddTrack and auto-creates a Track for each (spec
// §8 scenario 4: an answerer that didn't add a matching track still
// observes inbound RTP through Track/OnTrack). Tracks created this way
// are queued in pendingTracks exactly like locally-added ones, so
// startDtlsIfReady binds them and fires onTrack once SRTP is ready.
func (pc *PeerConnection) acceptRemoteTracks(desc *Description) {
	for _, md := range desc.Media {
		if md.Kind != MediaAudio && md.Kind != MediaVideo {
			continue
		}
		if _, ok := pc.registry.track(md.Mid); ok {
			continue
		}

		pc.mu.Lock()
		claimed := false
		for _, pt := range pc.pendingTracks {
			if pt.tr.Mid() == md.Mid {
				claimed = true
				break
			}
		}
		pc.mu.Unlock()
		if claimed {
			continue
		}

		var rtpMap RtpMap
		if len(md.RtpMaps) > 0 {
			rtpMap = md.RtpMaps[0]
		}
		var ssrc uint32
		var cname string
		if len(md.Ssrcs) > 0 {
			ssrc = md.Ssrcs[0].Ssrc
			cname = md.Ssrcs[0].Cname
		}
		seq := uint32(randutil.NewMathRandomGenerator().Uint64())
		cfg := NewRtpPacketizationConfig(ssrc, cname, rtpMap.PayloadType, rtpMap.ClockRate, uint16(seq), seq)
		tr := newTrack(md.Mid, md.Kind, rtpMap, cfg)

		pc.mu.Lock()
		pc.registry.registerTrack(md.Mid, tr)
		srtp := pc.srtp
		pc.mu.Unlock()

		if srtp != nil {
			tr.bindTransport(srtp)
			pc.mu.Lock()
			cb := pc.onTrack
			pc.mu.Unlock()
			if cb != nil {
				cb(tr)
			}
		} else {
			pc.mu.Lock()
			pc.pendingTracks = append(pc.pendingTracks, &pendingTrack{tr: tr, md: md})
			pc.mu.Unlock()
		}
	}
}

// AddRemoteCandidate feeds one trickled remote candidate, valid any
// time after the remote description has been applied (spec §4.7).
func (pc *PeerConnection) AddRemoteCandidate(c IceCandidate) error {
	pc.mu.Lock()
	ice := pc.ice
	pc.mu.Unlock()
	if ice == nil {
		return rtcerr.New(rtcerr.NotAvailable, "PeerConnection.AddRemoteCandidate")
	}
	return ice.AddRemoteCandidate(c.Value)
}

// startDtlsIfReady is invoked once ICE reaches Connected/Completed. It
// builds the pipeline mux, derives the DTLS role from the remote
// Description's a=setup, runs the handshake, and on success
// instantiates SCTP/SRTP for any pending channels/tracks.
func (pc *PeerConnection) startDtlsIfReady() {
	pc.mu.Lock()
	if pc.dtls != nil || pc.remoteDesc == nil {
		pc.mu.Unlock()
		return
	}
	remoteSetup := pc.remoteDesc.Setup
	remoteFp := pc.remoteDesc.Fingerprint
	mtu := pc.cfg.Mtu
	pc.mu.Unlock()

	conn := pc.ice.Conn()
	if conn == nil {
		return
	}
	m := newPipelineMux(conn, mtu+64)

	dtls, err := NewDtlsTransport(m.dtlsConn, pc.certificate, remoteSetup, mtu)
	if err != nil {
		pc.reportError(err)
		pc.setState(PeerConnectionFailed)
		return
	}
	dtls.SetExpectedFingerprint(remoteFp)

	ctx := context.Background()
	if pc.cfg.GatheringTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pc.cfg.GatheringTimeout)
		defer cancel()
	}
	if err := dtls.handshake(ctx); err != nil {
		pc.reportError(err)
		pc.setState(PeerConnectionFailed)
		return
	}

	pc.mu.Lock()
	pc.mux = m
	pc.dtls = dtls
	isClient := dtls.role == dtlsRoleClient
	pc.mu.Unlock()

	srtp, err := NewDtlsSrtpTransport(m.rtpConn, dtls, isClient)
	if err != nil {
		pc.reportError(err)
		pc.setState(PeerConnectionFailed)
		return
	}
	pc.mu.Lock()
	pc.srtp = srtp
	pendingTracks := pc.pendingTracks
	pc.pendingTracks = nil
	pc.mu.Unlock()
	for _, pt := range pendingTracks {
		pt.tr.bindTransport(srtp)
		pc.mu.Lock()
		cb := pc.onTrack
		pc.mu.Unlock()
		if cb != nil {
			cb(pt.tr)
		}
	}

	pc.mu.Lock()
	needsSctp := pc.remoteDesc != nil
	_, hasApp := pc.remoteDesc.ApplicationMedia()
	pc.mu.Unlock()
	if needsSctp && hasApp {
		pc.startSctp(dtls, isClient)
	}

	pc.setState(PeerConnectionConnected)
}

func (pc *PeerConnection) startSctp(dtls *DtlsTransport, isClient bool) {
	sctpConn := dtls.Conn()
	if sctpConn == nil {
		return
	}
	sctp, err := NewSctpTransport(sctpConn, isClient, pc.cfg.SctpSendBufferLimit, pc.pool, pc.cfg.CleanupTimeout)
	if err != nil {
		pc.reportError(err)
		pc.setState(PeerConnectionFailed)
		return
	}
	sctp.OnStreamMessage(pc.handleStreamMessage)
	sctp.OnStreamReset(pc.handleStreamReset)
	sctp.OnBufferedAmountLow(pc.handleBufferedLow)

	pc.mu.Lock()
	pc.sctp = sctp
	pending := pc.pendingChannels
	pc.pendingChannels = nil
	pc.mu.Unlock()

	for _, p := range pending {
		if err := pc.finalizeChannel(p.dc, p.hasPreset, p.presetStreamID); err != nil {
			pc.reportError(err)
		}
	}
}

// handleStreamMessage dispatches one reassembled SCTP message to its
// DataChannel. An unregistered stream id carrying a DCEP OPEN means the
// peer opened this channel (spec §4.8 steps 2-3): acceptRemoteChannel
// constructs and registers our side of it before the message is
// delivered.
func (pc *PeerConnection) handleStreamMessage(streamID uint16, msg *Message) {
	dc, ok := pc.registry.channel(streamID)
	if !ok {
		if msg.Type != Control || !isDcepOpen(msg.Payload) {
			return
		}
		var err error
		dc, err = pc.acceptRemoteChannel(streamID, msg.Payload)
		if err != nil {
			pc.reportError(err)
			return
		}
	}
	switch msg.Type {
	case Control:
		dc.handleControl(msg.Payload)
	default:
		dc.deliverMessage(msg)
	}
}

// acceptRemoteChannel builds the responder side of a channel the peer
// opened: a DataChannel bound to streamID (not ours to pick; the
// initiator already chose it by DTLS-role parity), registered and
// surfaced through onDataChannel before the OPEN's ACK is sent by the
// caller's subsequent handleControl.
func (pc *PeerConnection) acceptRemoteChannel(streamID uint16, openPayload []byte) (*DataChannel, error) {
	open, err := unmarshalDcepOpen(openPayload)
	if err != nil {
		return nil, rtcerr.Wrap(rtcerr.ProtocolError, "PeerConnection.acceptRemoteChannel", err)
	}
	reliability := reliabilityFromChannelType(open.ChannelType, open.ReliabilityParameter)
	dc := newDataChannel(open.Label, open.Protocol, reliability, false, streamID)

	pc.mu.Lock()
	sctp := pc.sctp
	pc.registry.registerChannel(streamID, dc)
	cb := pc.onDataChannel
	pc.mu.Unlock()

	if sctp != nil {
		if err := dc.bindSctp(sctp, streamID, false); err != nil {
			return nil, err
		}
	}

	if cb != nil {
		cb(dc)
	}
	return dc, nil
}

func (pc *PeerConnection) handleStreamReset(streamID uint16) {
	dc, ok := pc.registry.channel(streamID)
	if !ok {
		return
	}
	dc.handleReset()
	pc.registry.unregisterChannel(streamID)
}

func (pc *PeerConnection) handleBufferedLow(streamID uint16) {
	if dc, ok := pc.registry.channel(streamID); ok {
		dc.checkBufferedAmount()
	}
}

// Close transitions to Closed, closes every channel and track, tears
// down transports from the top of the stack down (SCTP, SRTP, DTLS,
// mux, then ICE, so SCTP's graceful shutdown still has a path to the
// peer), and drops callbacks to break any remaining reference cycles
// (spec §4.7).
func (pc *PeerConnection) Close() error {
	pc.mu.Lock()
	if pc.closed {
		pc.mu.Unlock()
		return nil
	}
	pc.closed = true
	if pc.negotiationTimer != nil {
		pc.negotiationTimer.Stop()
	}
	sctp, srtp, dtls, ice, m := pc.sctp, pc.srtp, pc.dtls, pc.ice, pc.mux
	ownsCert := pc.ownsCertificate
	certificate := pc.certificate
	pc.mu.Unlock()

	for _, dc := range pc.registry.allChannels() {
		_ = dc.Close()
	}
	for _, tr := range pc.registry.allTracks() {
		_ = tr.Close()
	}

	done := make(chan struct{})
	go func() {
		if sctp != nil {
			_ = sctp.stop()
		}
		if srtp != nil {
			_ = srtp.stop()
		}
		if dtls != nil {
			_ = dtls.stop()
		}
		if m != nil {
			_ = m.Close()
		}
		if ice != nil {
			_ = ice.stop()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(pc.cfg.CleanupTimeout):
	}

	if ownsCert {
		_ = certificate.Close()
	}

	pc.mu.Lock()
	pc.onStateChange = nil
	pc.onLocalDescription = nil
	pc.onIceCandidate = nil
	pc.onDataChannel = nil
	pc.onTrack = nil
	pc.onError = nil
	pc.mu.Unlock()

	pc.state = PeerConnectionClosed
	return nil
}
