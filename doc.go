// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

// Package rtc implements a peer-to-peer real-time communication client
// and server: an authenticated, congestion-controlled channel between
// two endpoints composed from ICE connectivity establishment, DTLS
// record security, SCTP-carried data channels, and SRTP-carried media
// tracks.
//
// The transport pipeline is layered ICE -> DTLS -> (SCTP | SRTP),
// wired up and owned by a PeerConnection, which also drives SDP
// offer/answer and multiplexes user-facing DataChannel and Track
// endpoints over that pipeline. The pipeline nodes and the per-track
// RTP/RTCP handler chain live in this package; package websocket is
// the standalone signaling transport used by the cmd/rtc-signal
// example and by tests.
package rtc
