// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"net"
	"sync"

	"github.com/pion/srtp/v3"

	"github.com/corvid-labs/rtc/internal/piolog"
	"github.com/corvid-labs/rtc/rtcerr"
)

// srtpKeyingMaterialLabel is the RFC 5764 exporter label.
const srtpKeyingMaterialLabel = "EXTRACTOR-dtls_srtp"

// DtlsSrtpTransport specializes the pipeline with an SRTP/SRTCP
// session over the RTP/RTCP-classified mux endpoint, keyed from the
// DTLS handshake's exported keying material (spec §4.1, §4.5). It
// demuxes RTP from SRTCP by SSRC/packet-type the same way the mux
// demuxed DTLS from RTP/RTCP one layer down.
type DtlsSrtpTransport struct {
	baseTransport

	rtpConn net.Conn
	dtls    *DtlsTransport

	mu       sync.Mutex
	session  *srtp.SessionSRTP
	rtcpSess *srtp.SessionSRTCP

	onSsrcPacket func(ssrc uint32, payload []byte)
}

// srtpKeyLen/srtpSaltLen are fixed by the SRTP_AES128_CM_HMAC_SHA1_80
// profile, the only SRTP profile this module uses.
const (
	srtpKeyLen  = 16
	srtpSaltLen = 14
)

// NewDtlsSrtpTransport builds an SRTP/SRTCP session over rtpConn (the
// mux's RTP/RTCP endpoint), deriving keys via dtls's exported keying
// material. active selects whether this side uses the "client" or
// "server" key/salt ordering from RFC 5764 §4.2 (matches the DTLS
// role).
func NewDtlsSrtpTransport(rtpConn net.Conn, dtlsTransport *DtlsTransport, active bool) (*DtlsSrtpTransport, error) {
	t := &DtlsSrtpTransport{rtpConn: rtpConn, dtls: dtlsTransport}
	t.st = Disconnected

	material, err := dtlsTransport.ExportKeyingMaterial(srtpKeyingMaterialLabel, 2*(srtpKeyLen+srtpSaltLen))
	if err != nil {
		return nil, err
	}

	clientKey := material[:srtpKeyLen]
	serverKey := material[srtpKeyLen : 2*srtpKeyLen]
	clientSalt := material[2*srtpKeyLen : 2*srtpKeyLen+srtpSaltLen]
	serverSalt := material[2*srtpKeyLen+srtpSaltLen : 2*srtpKeyLen+2*srtpSaltLen]

	var keys srtp.SessionKeys
	if active {
		keys = srtp.SessionKeys{
			LocalMasterKey: clientKey, LocalMasterSalt: clientSalt,
			RemoteMasterKey: serverKey, RemoteMasterSalt: serverSalt,
		}
	} else {
		keys = srtp.SessionKeys{
			LocalMasterKey: serverKey, LocalMasterSalt: serverSalt,
			RemoteMasterKey: clientKey, RemoteMasterSalt: clientSalt,
		}
	}

	config := &srtp.Config{
		Profile:       srtp.ProtectionProfileAes128CmHmacSha1_80,
		Keys:          keys,
		LoggerFactory: piolog.NewFactory(nil),
	}

	session, err := srtp.NewSessionSRTP(rtpConn, config)
	if err != nil {
		return nil, rtcerr.Wrap(rtcerr.TransportFailed, "DtlsSrtpTransport.New", err)
	}
	rtcpSession, err := srtp.NewSessionSRTCP(rtpConn, config)
	if err != nil {
		session.Close()
		return nil, rtcerr.Wrap(rtcerr.TransportFailed, "DtlsSrtpTransport.New", err)
	}

	t.session = session
	t.rtcpSess = rtcpSession
	t.setState(Connected)

	go t.acceptLoop()
	go t.acceptRtcpLoop()

	return t, nil
}

func (t *DtlsSrtpTransport) acceptLoop() {
	for {
		stream, ssrc, err := t.session.AcceptStream()
		if err != nil {
			return
		}
		go t.readStream(stream, ssrc)
	}
}

func (t *DtlsSrtpTransport) readStream(stream *srtp.ReadStreamSRTP, ssrc uint32) {
	buf := make([]byte, 1500)
	for {
		n, err := stream.Read(buf)
		if err != nil {
			return
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])

		t.mu.Lock()
		cb := t.onSsrcPacket
		t.mu.Unlock()
		if cb != nil {
			cb(ssrc, payload)
		}
	}
}

func (t *DtlsSrtpTransport) acceptRtcpLoop() {
	for {
		stream, ssrc, err := t.rtcpSess.AcceptStream()
		if err != nil {
			return
		}
		go t.readRtcpStream(stream, ssrc)
	}
}

func (t *DtlsSrtpTransport) readRtcpStream(stream *srtp.ReadStreamSRTCP, ssrc uint32) {
	buf := make([]byte, 1500)
	for {
		n, err := stream.Read(buf)
		if err != nil {
			return
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])

		t.mu.Lock()
		cb := t.onSsrcPacket
		t.mu.Unlock()
		if cb != nil {
			cb(ssrc, payload)
		}
	}
}

// OnSsrcPacket installs the callback receiving every decrypted RTP or
// RTCP payload, tagged with its SSRC for routing to the owning Track
// (spec §3/§4.9's "SSRC routing").
func (t *DtlsSrtpTransport) OnSsrcPacket(fn func(ssrc uint32, payload []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSsrcPacket = fn
}

// WriteRTP sends an already-marshaled RTP packet (header + payload).
// ssrc is accepted for symmetry with OnSsrcPacket/WriteRTCP even
// though pion/srtp's single write stream serializes by packet content,
// not by a separate per-SSRC handle.
func (t *DtlsSrtpTransport) WriteRTP(ssrc uint32, packet []byte) error {
	stream, err := t.session.OpenWriteStream()
	if err != nil {
		return rtcerr.Wrap(rtcerr.TransportFailed, "DtlsSrtpTransport.WriteRTP", err)
	}
	if _, err := stream.Write(packet); err != nil {
		return rtcerr.Wrap(rtcerr.TransportFailed, "DtlsSrtpTransport.WriteRTP", err)
	}
	return nil
}

// WriteRTCP sends a raw serialized RTCP packet (SR, NACK, etc).
func (t *DtlsSrtpTransport) WriteRTCP(payload []byte) error {
	stream, err := t.rtcpSess.OpenWriteStream()
	if err != nil {
		return rtcerr.Wrap(rtcerr.TransportFailed, "DtlsSrtpTransport.WriteRTCP", err)
	}
	if _, err := stream.Write(payload); err != nil {
		return rtcerr.Wrap(rtcerr.TransportFailed, "DtlsSrtpTransport.WriteRTCP", err)
	}
	return nil
}

func (t *DtlsSrtpTransport) start() error { return nil }

func (t *DtlsSrtpTransport) stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session != nil {
		t.session.Close()
	}
	if t.rtcpSess != nil {
		t.rtcpSess.Close()
	}
	return nil
}

func (t *DtlsSrtpTransport) send(m *Message) (bool, error) {
	return false, rtcerr.New(rtcerr.InvalidArgument, "DtlsSrtpTransport.send: use WriteRTP/WriteRTCP")
}
