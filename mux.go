// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"net"

	"github.com/pion/transport/v4/mux"

	"github.com/corvid-labs/rtc/internal/piolog"
)

// pipelineMux demultiplexes the single ICE 5-tuple into the DTLS and
// RTP/RTCP endpoints the spec's RFC 7983 dispatch table names (spec
// §4.1, §9's call for "an explicit dispatch table keyed on the first
// byte's range"). Built once per PeerConnection on top of the selected
// ICE connection; DtlsTransport reads/writes dtlsConn, and
// DtlsSrtpTransport reads/writes rtpConn for its SRTP/SRTCP session.
// STUN (0-3) and TURN-channel (64-79) bytes are left to the ICE
// library's own connection, which pion/ice already consumes before
// handing application data to its net.Conn — by the time bytes reach
// here they are only ever DTLS or RTP/RTCP.
type pipelineMux struct {
	m        *mux.Mux
	dtlsConn net.Conn
	rtpConn  net.Conn
}

func newPipelineMux(conn net.Conn, receiveMTU int) *pipelineMux {
	if receiveMTU <= 0 {
		receiveMTU = 8192
	}
	m := mux.NewMux(mux.Config{
		Conn:          conn,
		BufferSize:    receiveMTU,
		LoggerFactory: piolog.NewFactory(nil),
	})

	return &pipelineMux{
		m:        m,
		dtlsConn: m.NewEndpoint(matchClass(demuxDTLS)),
		rtpConn:  m.NewEndpoint(matchClass(demuxRTP)),
	}
}

func (p *pipelineMux) Close() error {
	return p.m.Close()
}

// matchClass adapts classifyFirstByte (the spec's named demux rule) to
// pion/transport/v4/mux's MatchFunc shape.
func matchClass(class demuxClass) mux.MatchFunc {
	return func(b []byte) bool {
		if len(b) == 0 {
			return false
		}
		return classifyFirstByte(b[0]) == class
	}
}
