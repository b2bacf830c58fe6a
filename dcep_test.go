// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import "testing"

func TestDcepOpenRoundTrip(t *testing.T) {
	in := dcepOpenMessage{
		ChannelType:          0x00,
		Priority:             256,
		ReliabilityParameter: 0,
		Label:                "echo",
		Protocol:             "",
	}
	wire := in.marshal()
	if !isDcepOpen(wire) {
		t.Fatal("isDcepOpen() = false for a marshaled OPEN message")
	}

	out, err := unmarshalDcepOpen(wire)
	if err != nil {
		t.Fatalf("unmarshalDcepOpen() error = %v", err)
	}
	if out != in {
		t.Fatalf("unmarshalDcepOpen() = %+v, want %+v", out, in)
	}
}

func TestDcepAck(t *testing.T) {
	wire := marshalDcepAck()
	if !isDcepAck(wire) {
		t.Fatal("isDcepAck() = false for a marshaled ACK message")
	}
	if isDcepOpen(wire) {
		t.Fatal("isDcepOpen() = true for an ACK message")
	}
}

func TestReliabilityChannelTypeRoundTrip(t *testing.T) {
	cases := []Reliability{
		ReliableOrdered(),
		{Unordered: true, Kind: Reliable},
		{Kind: PartialRexmit, Rexmit: 5},
		{Unordered: true, Kind: PartialRexmit, Rexmit: 5},
		{Kind: PartialTimed, Timed: 250 * 1e6}, // 250ms: Timed is a time.Duration, counted in nanoseconds
	}
	for _, want := range cases {
		ct := want.channelType()
		param := want.reliabilityParameter()
		got := reliabilityFromChannelType(ct, param)
		if got != want {
			t.Fatalf("reliabilityFromChannelType(%#x, %d) = %+v, want %+v", ct, param, got, want)
		}
	}
}
