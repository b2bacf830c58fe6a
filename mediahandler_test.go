// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import "testing"

type recordingHandler struct {
	name    string
	trace   *[]string
	dropOut bool
	dropIn  bool
}

func (h *recordingHandler) outgoing(msg *Message) *Message {
	*h.trace = append(*h.trace, "out:"+h.name)
	if h.dropOut {
		return nil
	}
	return msg
}

func (h *recordingHandler) incoming(msg *Message) *Message {
	*h.trace = append(*h.trace, "in:"+h.name)
	if h.dropIn {
		return nil
	}
	return msg
}

func TestMediaHandlerChainOrdering(t *testing.T) {
	var trace []string
	chain := newMediaHandlerChain(
		&recordingHandler{name: "a", trace: &trace},
		&recordingHandler{name: "b", trace: &trace},
		&recordingHandler{name: "c", trace: &trace},
	)

	chain.processOutgoing(&Message{Type: Binary, Payload: []byte("x")})
	wantOut := []string{"out:a", "out:b", "out:c"}
	assertTrace(t, trace, wantOut)

	trace = nil
	chain.processIncoming(&Message{Type: Binary, Payload: []byte("x")})
	wantIn := []string{"in:c", "in:b", "in:a"}
	assertTrace(t, trace, wantIn)
}

func TestMediaHandlerChainShortCircuitsOnDrop(t *testing.T) {
	var trace []string
	chain := newMediaHandlerChain(
		&recordingHandler{name: "a", trace: &trace, dropOut: true},
		&recordingHandler{name: "b", trace: &trace},
	)

	got := chain.processOutgoing(&Message{Type: Binary, Payload: []byte("x")})
	if got != nil {
		t.Fatal("processOutgoing() should return nil once a handler drops the message")
	}
	if len(trace) != 1 || trace[0] != "out:a" {
		t.Fatalf("trace = %v, want only the dropping handler to run", trace)
	}
}

func assertTrace(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("trace = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("trace = %v, want %v", got, want)
		}
	}
}
