// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"sync"

	"github.com/corvid-labs/rtc/rtcerr"
)

// DataChannelState is the DCEP open/close handshake's visible state
// machine (spec §4.8).
type DataChannelState int

const (
	DataChannelConnecting DataChannelState = iota
	DataChannelOpen
	DataChannelClosing
	DataChannelClosed
)

// DataChannel is the user endpoint bound to one SCTP stream: asymmetric
// creation (the initiator picks the stream id unless negotiated mode
// supplies one), a buffered pre-open send queue flushed on open, and
// buffered-amount/low-threshold accounting (spec §4.8).
type DataChannel struct {
	mu    sync.Mutex
	sctp  *SctpTransport
	label string
	proto string

	streamID     uint16
	reliability  Reliability
	negotiated   bool
	isInitiator  bool

	state DataChannelState

	pending []*Message // pre-open send buffer, flushed on open in order

	lowThreshold int
	wasAboveLow  bool

	onOpen            func()
	missedOpen        bool
	onMessage         func(*Message)
	onClosed          func()
	onBufferedAmtLow  func()
	onError           func(error)
}

// newDataChannel is called by PeerConnection, which owns stream-id
// assignment and registry bookkeeping; DataChannel itself never talks
// to the registry directly (spec §9's explicit-ownership
// re-architecture of the weak-back-reference pattern). The SCTP
// transport and stream id are not known until the association exists,
// so they're filled in later by bindSctp; sends before then land in
// the pending queue exactly like any other pre-open send.
func newDataChannel(label, protocol string, reliability Reliability, negotiated bool, presetStreamID uint16) *DataChannel {
	return &DataChannel{
		label:       label,
		proto:       protocol,
		streamID:    presetStreamID,
		reliability: reliability,
		negotiated:  negotiated,
		state:       DataChannelConnecting,
	}
}

// bindSctp attaches the live SctpTransport once the association is
// ready, assigns the final stream id (already fixed for negotiated
// channels, otherwise chosen by the caller per DTLS-role parity), and
// issues the OPEN handshake.
func (dc *DataChannel) bindSctp(sctpTransport *SctpTransport, streamID uint16, isInitiator bool) error {
	dc.mu.Lock()
	dc.sctp = sctpTransport
	dc.streamID = streamID
	dc.isInitiator = isInitiator
	dc.mu.Unlock()
	return dc.openStream()
}

// Label returns the channel's label, fixed at creation.
func (dc *DataChannel) Label() string { return dc.label }

// Protocol returns the channel's negotiated subprotocol string.
func (dc *DataChannel) Protocol() string { return dc.proto }

// StreamID returns the SCTP stream id this channel is bound to.
func (dc *DataChannel) StreamID() uint16 { return dc.streamID }

// State returns the channel's current lifecycle state.
func (dc *DataChannel) State() DataChannelState {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.state
}

// openStream issues (initiator, non-negotiated mode) the SCTP stream
// and DCEP OPEN, per spec §4.8 step 1. Negotiated channels skip the
// OPEN: both sides already agreed on the stream id out of band, so the
// channel opens as soon as its stream is bound.
func (dc *DataChannel) openStream() error {
	if _, err := dc.sctp.OpenStream(dc.streamID, dc.reliability); err != nil {
		return err
	}
	if dc.negotiated {
		dc.transitionOpen()
		return nil
	}
	if !dc.isInitiator {
		return nil
	}
	open := dcepOpenMessage{
		ChannelType:          dc.reliability.channelType(),
		Priority:             0,
		ReliabilityParameter: dc.reliability.reliabilityParameter(),
		Label:                dc.label,
		Protocol:             dc.proto,
	}
	return dc.sctp.SendControl(dc.streamID, open.marshal())
}

// handleControl processes a DCEP control message this channel's stream
// received: OPEN from the peer (we are the responder; reply ACK and
// open) or ACK (we were the initiator; open).
func (dc *DataChannel) handleControl(payload []byte) {
	switch {
	case isDcepOpen(payload):
		_ = dc.sctp.SendControl(dc.streamID, marshalDcepAck())
		dc.transitionOpen()
	case isDcepAck(payload):
		dc.transitionOpen()
	}
}

func (dc *DataChannel) transitionOpen() {
	dc.mu.Lock()
	if dc.state != DataChannelConnecting {
		dc.mu.Unlock()
		return
	}
	dc.state = DataChannelOpen
	pending := dc.pending
	dc.pending = nil
	cb := dc.onOpen
	if cb == nil {
		dc.missedOpen = true
	}
	dc.mu.Unlock()

	for _, m := range pending {
		id := dc.streamID
		m.StreamID = &id
		dc.sctp.Send(dc.streamID, m)
	}
	if cb != nil {
		cb()
	}
}

// Send queues payload as a Binary message. Per spec §4.8, sends before
// Open are buffered and flushed in order once the channel opens; sends
// after Close are rejected.
func (dc *DataChannel) Send(payload []byte) error {
	return dc.send(payload, Binary)
}

// SendText queues text as a String message.
func (dc *DataChannel) SendText(text string) error {
	return dc.send([]byte(text), String)
}

func (dc *DataChannel) send(payload []byte, msgType MessageType) error {
	dc.mu.Lock()
	switch dc.state {
	case DataChannelClosed, DataChannelClosing:
		dc.mu.Unlock()
		return rtcerr.New(rtcerr.Closed, "DataChannel.Send")
	case DataChannelConnecting:
		dc.pending = append(dc.pending, &Message{Type: msgType, Payload: payload})
		dc.mu.Unlock()
		return nil
	}
	dc.mu.Unlock()

	id := dc.streamID
	dc.sctp.Send(dc.streamID, &Message{Type: msgType, Payload: payload, StreamID: &id})
	dc.checkBufferedAmount()
	return nil
}

// BufferedAmount returns bytes handed to SCTP but not yet acknowledged
// (spec §4.8).
func (dc *DataChannel) BufferedAmount() int {
	return dc.sctp.BufferedAmount(dc.streamID)
}

// SetBufferedAmountLowThreshold arms onBufferedAmountLow to fire the
// next time BufferedAmount transitions from above t to at-or-below t.
func (dc *DataChannel) SetBufferedAmountLowThreshold(t int) {
	dc.mu.Lock()
	dc.lowThreshold = t
	dc.wasAboveLow = dc.sctp.BufferedAmount(dc.streamID) > t
	dc.mu.Unlock()
}

func (dc *DataChannel) checkBufferedAmount() {
	dc.mu.Lock()
	current := dc.sctp.BufferedAmount(dc.streamID)
	wasAbove := dc.wasAboveLow
	threshold := dc.lowThreshold
	nowAbove := current > threshold
	dc.wasAboveLow = nowAbove
	cb := dc.onBufferedAmtLow
	dc.mu.Unlock()

	if wasAbove && !nowAbove && cb != nil {
		cb()
	}
}

// OnOpen installs the open callback. Per spec §9's "synchronized
// callbacks with last-call replay", installing a non-nil callback
// after Open already fired dispatches immediately.
func (dc *DataChannel) OnOpen(fn func()) {
	dc.mu.Lock()
	missed := dc.missedOpen
	if missed {
		dc.missedOpen = false
	}
	dc.onOpen = fn
	dc.mu.Unlock()
	if missed && fn != nil {
		fn()
	}
}

func (dc *DataChannel) OnMessage(fn func(*Message)) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.onMessage = fn
}

func (dc *DataChannel) OnClosed(fn func()) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.onClosed = fn
}

func (dc *DataChannel) OnBufferedAmountLow(fn func()) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.onBufferedAmtLow = fn
}

func (dc *DataChannel) OnError(fn func(error)) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.onError = fn
}

// deliverMessage dispatches one reassembled application message to the
// user callback. Control messages never reach here:
// PeerConnection.handleStreamMessage routes them to handleControl.
func (dc *DataChannel) deliverMessage(msg *Message) {
	dc.mu.Lock()
	cb := dc.onMessage
	dc.mu.Unlock()
	if cb != nil {
		cb(msg)
	}
}

// Close tears the channel down: resets the SCTP stream and transitions
// to Closed. After Close, Send always fails with rtcerr.Closed and no
// further callback fires except the one onClosed call (spec §8
// scenario 6).
func (dc *DataChannel) Close() error {
	dc.mu.Lock()
	if dc.state == DataChannelClosed || dc.state == DataChannelClosing {
		dc.mu.Unlock()
		return nil
	}
	dc.state = DataChannelClosing
	dc.mu.Unlock()

	err := dc.sctp.ResetStream(dc.streamID)

	dc.mu.Lock()
	dc.state = DataChannelClosed
	cb := dc.onClosed
	dc.mu.Unlock()
	if cb != nil {
		cb()
	}
	return err
}

func (dc *DataChannel) handleReset() {
	dc.mu.Lock()
	if dc.state == DataChannelClosed {
		dc.mu.Unlock()
		return
	}
	dc.state = DataChannelClosed
	cb := dc.onClosed
	dc.mu.Unlock()
	if cb != nil {
		cb()
	}
}
