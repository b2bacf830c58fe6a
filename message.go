// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

// MessageType tags the payload carried by a Message. See spec §3.
type MessageType int

const (
	// Binary is an opaque byte payload (SCTP PPID 53, or 57 when
	// empty).
	Binary MessageType = iota
	// String is UTF-8 text (SCTP PPID 51, or 56 when empty).
	String
	// Control carries a DCEP control message on the data channel's own
	// stream (SCTP PPID 50). Never exposed to DataChannel users
	// directly.
	Control
	// Reset signals that the peer tore down the stream this message
	// was associated with (SCTP_RESET_STREAMS). Carries no payload.
	Reset
)

func (t MessageType) String() string {
	switch t {
	case Binary:
		return "binary"
	case String:
		return "string"
	case Control:
		return "control"
	case Reset:
		return "reset"
	default:
		return "unknown"
	}
}

// Dscp is the differentiated services code point a Message should be
// sent with, when the lower transport supports setting one.
type Dscp uint8

// Message is an immutable byte buffer tagged with enough routing
// information for every layer between a DataChannel/Track and the ICE
// socket to do its job without knowing about the layers above or
// below it.
//
// A Message is created once by its producer and handed down (or up)
// the pipeline; transports may wrap it (e.g. split it into SCTP
// records) but never mutate Payload. It is freed by the garbage
// collector once the last holder drops its reference — there is no
// explicit ownership-transfer API because Go doesn't need one.
type Message struct {
	Type    MessageType
	Payload []byte

	// StreamID identifies the SCTP stream this message belongs to.
	// Meaningful only for messages flowing through SctpTransport;
	// ignored by the media pipeline.
	StreamID *uint16

	// Reliability is not read by SctpTransport: a stream's
	// reliability is applied once, by SctpTransport.OpenStream. Nil
	// on every message this package builds.
	Reliability *Reliability

	// Dscp requests a differentiated-services marking on the
	// outbound UDP datagram. Zero value means "don't set one".
	Dscp Dscp
}

// Size returns the byte length of the message payload. SctpTransport's
// send queue measures its items with it, so amount() tracks bytes
// rather than message count.
func (m *Message) Size() int {
	if m == nil {
		return 0
	}
	return len(m.Payload)
}

// NewBinaryMessage wraps payload as a Binary message for the given
// SCTP stream.
func NewBinaryMessage(streamID uint16, payload []byte) *Message {
	id := streamID
	return &Message{Type: Binary, Payload: payload, StreamID: &id}
}

// NewStringMessage wraps text as a String message for the given SCTP
// stream.
func NewStringMessage(streamID uint16, text string) *Message {
	id := streamID
	return &Message{Type: String, Payload: []byte(text), StreamID: &id}
}
