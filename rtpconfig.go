// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import "sync"

// RtpPacketizationConfig is the mutable state every outbound sample
// consults to stamp its RTP header (spec §3). One instance per Track,
// guarded by its own mutex since packetizers run on whatever
// goroutine the user calls Track.SendSample from.
type RtpPacketizationConfig struct {
	mu sync.Mutex

	Ssrc        uint32
	Cname       string
	PayloadType byte
	ClockRate   uint32

	sequenceNumber uint16
	timestamp      uint32
	startTimestamp uint32
	epochStart     int64 // unix nanos of the first Sender Report, recorded by RtcpSrReporter
}

// NewRtpPacketizationConfig seeds sequence number and timestamp; per
// spec §3 these fields are otherwise only ever advanced, never reset,
// for the lifetime of the track.
func NewRtpPacketizationConfig(ssrc uint32, cname string, payloadType byte, clockRate uint32, startSequenceNumber uint16, startTimestamp uint32) *RtpPacketizationConfig {
	return &RtpPacketizationConfig{
		Ssrc:           ssrc,
		Cname:          cname,
		PayloadType:    payloadType,
		ClockRate:      clockRate,
		sequenceNumber: startSequenceNumber,
		timestamp:      startTimestamp,
		startTimestamp: startTimestamp,
	}
}

// nextSequence returns the next sequence number and advances the
// counter, wrapping per RFC 3550's 16-bit field.
func (c *RtpPacketizationConfig) nextSequence() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq := c.sequenceNumber
	c.sequenceNumber++
	return seq
}

// Timestamp returns the current RTP timestamp without advancing it.
func (c *RtpPacketizationConfig) Timestamp() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timestamp
}

// StartTimestamp returns the timestamp the track was created with;
// unlike Timestamp it never advances.
func (c *RtpPacketizationConfig) StartTimestamp() uint32 {
	return c.startTimestamp
}

// advanceTimestamp moves the clock forward by samples, called once per
// outbound frame/sample before packetization.
func (c *RtpPacketizationConfig) advanceTimestamp(samples uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timestamp += samples
	return c.timestamp
}

func (c *RtpPacketizationConfig) recordEpochStart(nowUnixNano int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epochStart == 0 {
		c.epochStart = nowUnixNano
	}
}

func (c *RtpPacketizationConfig) epoch() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epochStart
}
