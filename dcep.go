// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"encoding/binary"
	"fmt"
)

// DCEP message types (spec §6), carried on SCTP PPID 50.
const (
	dcepAck  byte = 0x02
	dcepOpen byte = 0x03
)

// dcepOpenHeaderLen is the fixed portion of an OPEN message before the
// variable-length label/protocol strings: message type (1) +
// channelType (1) + priority (2) + reliabilityParameter (4) +
// labelLen (2) + protocolLen (2).
const dcepOpenHeaderLen = 1 + 1 + 2 + 4 + 2 + 2

// dcepOpenMessage is the wire shape of the DCEP OPEN message (spec
// §6): u8 channelType, u16 priority, u32 reliabilityParameter, u16
// labelLen, u16 protocolLen, label, protocol — all network byte order,
// prefixed with the 0x03 message-type tag.
type dcepOpenMessage struct {
	ChannelType          byte
	Priority             uint16
	ReliabilityParameter uint32
	Label                string
	Protocol             string
}

func (m dcepOpenMessage) marshal() []byte {
	buf := make([]byte, dcepOpenHeaderLen+len(m.Label)+len(m.Protocol))
	buf[0] = dcepOpen
	buf[1] = m.ChannelType
	binary.BigEndian.PutUint16(buf[2:4], m.Priority)
	binary.BigEndian.PutUint32(buf[4:8], m.ReliabilityParameter)
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(m.Label)))
	binary.BigEndian.PutUint16(buf[10:12], uint16(len(m.Protocol)))
	n := copy(buf[dcepOpenHeaderLen:], m.Label)
	copy(buf[dcepOpenHeaderLen+n:], m.Protocol)
	return buf
}

// unmarshalDcepOpen parses a DCEP OPEN message. b[0] must already have
// been checked to equal dcepOpen by the caller.
func unmarshalDcepOpen(b []byte) (dcepOpenMessage, error) {
	if len(b) < dcepOpenHeaderLen {
		return dcepOpenMessage{}, fmt.Errorf("rtc: DCEP OPEN too short: %d bytes", len(b))
	}
	channelType := b[1]
	priority := binary.BigEndian.Uint16(b[2:4])
	param := binary.BigEndian.Uint32(b[4:8])
	labelLen := int(binary.BigEndian.Uint16(b[8:10]))
	protocolLen := int(binary.BigEndian.Uint16(b[10:12]))
	if len(b) < dcepOpenHeaderLen+labelLen+protocolLen {
		return dcepOpenMessage{}, fmt.Errorf("rtc: DCEP OPEN length mismatch: have %d, want %d", len(b), dcepOpenHeaderLen+labelLen+protocolLen)
	}
	label := string(b[dcepOpenHeaderLen : dcepOpenHeaderLen+labelLen])
	protocol := string(b[dcepOpenHeaderLen+labelLen : dcepOpenHeaderLen+labelLen+protocolLen])
	return dcepOpenMessage{
		ChannelType:          channelType,
		Priority:             priority,
		ReliabilityParameter: param,
		Label:                label,
		Protocol:             protocol,
	}, nil
}

// marshalDcepAck renders the DCEP ACK message: a single byte, no
// payload beyond its message-type tag (spec §6).
func marshalDcepAck() []byte {
	return []byte{dcepAck}
}

func isDcepOpen(b []byte) bool {
	return len(b) >= 1 && b[0] == dcepOpen
}

func isDcepAck(b []byte) bool {
	return len(b) == 1 && b[0] == dcepAck
}
