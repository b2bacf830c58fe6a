// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import "testing"

func TestRtpPacketizationConfigSequenceWrap(t *testing.T) {
	cfg := NewRtpPacketizationConfig(1234, "cname", 111, 48000, 0xFFFE, 0)
	if got := cfg.nextSequence(); got != 0xFFFE {
		t.Fatalf("nextSequence() = %#x, want 0xfffe", got)
	}
	if got := cfg.nextSequence(); got != 0xFFFF {
		t.Fatalf("nextSequence() = %#x, want 0xffff", got)
	}
	if got := cfg.nextSequence(); got != 0 {
		t.Fatalf("nextSequence() = %#x, want wraparound to 0", got)
	}
}

func TestRtpPacketizationConfigAdvanceTimestamp(t *testing.T) {
	cfg := NewRtpPacketizationConfig(1, "c", 0, 8000, 0, 1000)
	if got := cfg.StartTimestamp(); got != 1000 {
		t.Fatalf("StartTimestamp() = %d, want 1000", got)
	}
	if got := cfg.advanceTimestamp(160); got != 1160 {
		t.Fatalf("advanceTimestamp(160) = %d, want 1160", got)
	}
	if got := cfg.Timestamp(); got != 1160 {
		t.Fatalf("Timestamp() = %d, want 1160", got)
	}
	// StartTimestamp never moves even as the clock advances.
	if got := cfg.StartTimestamp(); got != 1000 {
		t.Fatalf("StartTimestamp() after advance = %d, want 1000", got)
	}
}

func TestRtpPacketizationConfigEpochRecordedOnce(t *testing.T) {
	cfg := NewRtpPacketizationConfig(1, "c", 0, 8000, 0, 0)
	cfg.recordEpochStart(100)
	cfg.recordEpochStart(200)
	if got := cfg.epoch(); got != 100 {
		t.Fatalf("epoch() = %d, want 100 (first call wins)", got)
	}
}
