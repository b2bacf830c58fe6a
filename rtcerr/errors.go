// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

// Package rtcerr defines the error taxonomy shared by every package in
// this module. Background I/O failures and user-call failures both
// surface as *Error so callers can branch on Kind with errors.As,
// the same way github.com/bureau-foundation/bureau/lib/github
// distinguishes its APIError cases.
package rtcerr

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed. See spec §7.
type Kind string

const (
	// InvalidArgument means the caller violated a documented contract
	// (e.g. a negative buffer size, a stream id already in use).
	InvalidArgument Kind = "invalid_argument"

	// NotAvailable means the caller asked for a value that does not
	// exist yet, such as a local description before ICE gathering
	// completes.
	NotAvailable Kind = "not_available"

	// NotOpen means the channel or track the caller addressed has not
	// reached the Open state.
	NotOpen Kind = "not_open"

	// BufferFull means a non-blocking send could not enqueue because
	// the outbound queue is at its configured limit.
	BufferFull Kind = "buffer_full"

	// TransportFailed means a lower-layer transport failed in a way
	// that cannot be recovered without renegotiation.
	TransportFailed Kind = "transport_failed"

	// ProtocolError means malformed SDP, DCEP, or RTP/RTCP was
	// received.
	ProtocolError Kind = "protocol_error"

	// Timeout means a bounded wait (ICE gathering, DTLS handshake,
	// SCTP shutdown) expired.
	Timeout Kind = "timeout"

	// Closed means the object the caller addressed has already been
	// torn down.
	Closed Kind = "closed"
)

// Error is the concrete error type every package in this module
// returns. Op names the failing operation (e.g. "DataChannel.Send"),
// and Err, when non-nil, is the underlying cause from a wrapped
// library.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rtc: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("rtc: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error with no wrapped cause.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap constructs an *Error that carries cause as its Unwrap target.
// Wrap(kind, op, nil) returns a nil *Error; held in an error
// interface, that nil pointer compares non-nil.
func Wrap(kind Kind, op string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf extracts the Kind from err, returning "" if err is not (or
// does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
