// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"sync"
	"time"

	"github.com/pion/rtcp"
)

// rtcpSrInterval is the minimum cadence spec §4.9 names: "emits an
// RTCP SR at least every 1s of media clock".
const rtcpSrInterval = 1 * time.Second

// RtcpSrReporter emits RTCP Sender Reports on a timer and on demand,
// tracking packet/octet counts. Each report pairs the wall-clock time
// of the report (as NTP) with the track's current RTP timestamp
// (RtpPacketizationConfig.Timestamp, the last value a sample was
// stamped with); the RTP timestamp is not computed from the wall-clock
// time elapsed since StartTimestamp.
type RtcpSrReporter struct {
	cfg *RtpPacketizationConfig

	mu                        sync.Mutex
	packetCount               uint32
	octetCount                uint32
	previousReportedTimestamp uint32

	sendRTCP func(pkt rtcp.Packet) error

	timer   *time.Timer
	needsMu sync.Mutex
	stopped bool
}

// NewRtcpSrReporter wires sendRTCP, the callback the owning Track uses
// to hand an RTCP packet down to DtlsSrtpTransport.WriteRTCP.
func NewRtcpSrReporter(cfg *RtpPacketizationConfig, sendRTCP func(pkt rtcp.Packet) error) *RtcpSrReporter {
	r := &RtcpSrReporter{cfg: cfg, sendRTCP: sendRTCP}
	r.timer = time.AfterFunc(rtcpSrInterval, r.tick)
	return r
}

func (r *RtcpSrReporter) tick() {
	r.report()
	r.needsMu.Lock()
	stopped := r.stopped
	r.needsMu.Unlock()
	if !stopped {
		r.timer.Reset(rtcpSrInterval)
	}
}

// setNeedsToReport forces an immediate SR outside the regular 1s
// cadence (spec §4.9).
func (r *RtcpSrReporter) setNeedsToReport() {
	r.report()
}

// accumulate records one outbound RTP packet's size for the next
// report's packet/octet counts.
func (r *RtcpSrReporter) accumulate(payloadLen int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packetCount++
	r.octetCount += uint32(payloadLen)
}

func (r *RtcpSrReporter) report() {
	now := time.Now().UnixNano()
	r.cfg.recordEpochStart(now)

	r.mu.Lock()
	ts := r.cfg.Timestamp()
	r.previousReportedTimestamp = ts
	pktCount := r.packetCount
	octCount := r.octetCount
	r.mu.Unlock()

	ntpSec, ntpFrac := toNtp(now)
	sr := &rtcp.SenderReport{
		SSRC:        r.cfg.Ssrc,
		NTPTime:     ntpSec<<32 | ntpFrac,
		RTPTime:     ts,
		PacketCount: pktCount,
		OctetCount:  octCount,
	}
	if r.sendRTCP != nil {
		_ = r.sendRTCP(sr)
	}
}

func (r *RtcpSrReporter) stop() {
	r.needsMu.Lock()
	r.stopped = true
	r.needsMu.Unlock()
	r.timer.Stop()
}

// ntpEpochOffset is the number of seconds between the NTP epoch
// (1900-01-01) and the Unix epoch (1970-01-01).
const ntpEpochOffset = 2208988800

func toNtp(unixNano int64) (seconds, fraction uint64) {
	sec := unixNano / int64(time.Second)
	nsec := unixNano % int64(time.Second)
	seconds = uint64(sec + ntpEpochOffset)
	fraction = uint64(float64(nsec) / float64(time.Second) * (1 << 32))
	return seconds, fraction
}
