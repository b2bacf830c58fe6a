// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"context"
	"crypto/tls"
	"net"
	"sync"

	"github.com/pion/dtls/v3"

	"github.com/corvid-labs/rtc/cert"
	"github.com/corvid-labs/rtc/internal/piolog"
	"github.com/corvid-labs/rtc/rtcerr"
)

// dtlsRole mirrors the a=setup attribute, derived per spec §4.5:
// remote "active" means we are server, "passive" or "actpass" means
// we are client.
type dtlsRole int

const (
	dtlsRoleClient dtlsRole = iota
	dtlsRoleServer
)

func dtlsRoleFromSetup(remoteSetup string) dtlsRole {
	if remoteSetup == "active" {
		return dtlsRoleServer
	}
	return dtlsRoleClient
}

// DtlsTransport performs the datagram TLS handshake over the DTLS
// endpoint of the pipeline mux and verifies the peer certificate's
// fingerprint on completion (spec §4.5). Outgoing payloads that arrive
// before Connected are dropped: send reports false with a nil error,
// and nothing is logged.
type DtlsTransport struct {
	baseTransport

	lower       net.Conn // the mux's DTLS-classified endpoint
	certificate *cert.Certificate
	role        dtlsRole
	mtu         int

	expectedFingerprint string
	fingerprintMu       sync.Mutex

	conn   *dtls.Conn
	connMu sync.Mutex
}

// NewDtlsTransport prepares a DTLS transport over lower (the mux's
// DTLS-classified endpoint), presenting localCert; the handshake itself
// runs in handshake. remoteSetup is the
// remote SDP's a=setup value; mtu is Configuration.Mtu, used when the
// path MTU is not otherwise known.
func NewDtlsTransport(lower net.Conn, localCert *cert.Certificate, remoteSetup string, mtu int) (*DtlsTransport, error) {
	if mtu <= 0 {
		mtu = 1200
	}
	t := &DtlsTransport{
		lower:       lower,
		certificate: localCert,
		role:        dtlsRoleFromSetup(remoteSetup),
		mtu:         mtu,
	}
	t.st = Disconnected
	return t, nil
}

// SetExpectedFingerprint records the SHA-256 fingerprint advertised by
// the peer's Description, checked once the handshake completes.
func (t *DtlsTransport) SetExpectedFingerprint(fp string) {
	t.fingerprintMu.Lock()
	defer t.fingerprintMu.Unlock()
	t.expectedFingerprint = fp
}

// handshake blocks until the DTLS session is established (or ctx is
// done). Called by PeerConnection once the lower ICE transport reaches
// Connected, per spec §4.5's handshake-timing rule.
func (t *DtlsTransport) handshake(ctx context.Context) error {
	t.setState(Connecting)

	tlsCert, err := t.certificate.TLSCertificate()
	if err != nil {
		t.fail(err)
		return err
	}

	config := &dtls.Config{
		Certificates:         []tls.Certificate{tlsCert},
		InsecureSkipVerify:   true, // verified manually below against the SDP fingerprint, not a CA chain
		LoggerFactory:        piolog.NewFactory(nil),
		MTU:                  t.mtu,
		ExtendedMasterSecret: dtls.RequireExtendedMasterSecret,
	}

	var conn *dtls.Conn
	if t.role == dtlsRoleClient {
		conn, err = dtls.ClientWithContext(ctx, t.lower, config)
	} else {
		conn, err = dtls.ServerWithContext(ctx, t.lower, config)
	}
	if err != nil {
		wrapped := rtcerr.Wrap(rtcerr.TransportFailed, "DtlsTransport.handshake", err)
		t.fail(wrapped)
		return wrapped
	}

	state, err := conn.ConnectionState()
	if err != nil || len(state.PeerCertificates) == 0 {
		conn.Close()
		wrapped := rtcerr.New(rtcerr.ProtocolError, "DtlsTransport.handshake: no peer certificate presented")
		t.fail(wrapped)
		return wrapped
	}

	t.fingerprintMu.Lock()
	expected := t.expectedFingerprint
	t.fingerprintMu.Unlock()
	if expected != "" && !cert.VerifyFingerprint(state.PeerCertificates[0], expected) {
		conn.Close()
		wrapped := rtcerr.New(rtcerr.ProtocolError, "DtlsTransport.handshake: peer fingerprint mismatch")
		t.fail(wrapped)
		return wrapped
	}

	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()

	go t.readLoop()
	t.setState(Connected)
	return nil
}

func (t *DtlsTransport) readLoop() {
	buf := make([]byte, 1<<16)
	for {
		t.connMu.Lock()
		conn := t.conn
		t.connMu.Unlock()
		if conn == nil {
			return
		}
		n, err := conn.Read(buf)
		if err != nil {
			t.fail(rtcerr.Wrap(rtcerr.TransportFailed, "DtlsTransport.readLoop", err))
			return
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		t.deliver(&Message{Type: Binary, Payload: payload})
	}
}

// Conn returns the established *dtls.Conn, used directly as the net.Conn
// SctpTransport's association is built on (SCTP rides inside DTLS
// application data, unlike RTP/RTCP which only shares the ICE 5-tuple;
// spec §4.1/§4.6).
func (t *DtlsTransport) Conn() net.Conn {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn
}

// ExportKeyingMaterial exposes SRTP keying material for
// DtlsSrtpTransport to derive SRTP/SRTCP master keys and salts from
// (spec §4.1's "DtlsSrtpTransport ... exports SRTP keying material").
func (t *DtlsTransport) ExportKeyingMaterial(label string, length int) ([]byte, error) {
	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()
	if conn == nil {
		return nil, rtcerr.New(rtcerr.NotOpen, "DtlsTransport.ExportKeyingMaterial")
	}
	km, err := conn.ExportKeyingMaterial(label, nil, length)
	if err != nil {
		return nil, rtcerr.Wrap(rtcerr.TransportFailed, "DtlsTransport.ExportKeyingMaterial", err)
	}
	return km, nil
}

// PeerCertificateDER returns the DER-encoded certificate the peer
// presented during the handshake.
func (t *DtlsTransport) PeerCertificateDER() ([]byte, error) {
	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()
	if conn == nil {
		return nil, rtcerr.New(rtcerr.NotOpen, "DtlsTransport.PeerCertificateDER")
	}
	state, err := conn.ConnectionState()
	if err != nil || len(state.PeerCertificates) == 0 {
		return nil, rtcerr.New(rtcerr.NotAvailable, "DtlsTransport.PeerCertificateDER")
	}
	return state.PeerCertificates[0], nil
}

func (t *DtlsTransport) start() error { return nil }

func (t *DtlsTransport) stop() error {
	t.connMu.Lock()
	conn := t.conn
	t.conn = nil
	t.connMu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// send writes a message over the DTLS record layer. Per spec §4.5,
// payloads arriving before Connected are dropped rather than queued.
func (t *DtlsTransport) send(m *Message) (bool, error) {
	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()
	if conn == nil {
		return false, nil // dropped, not logged
	}
	if _, err := conn.Write(m.Payload); err != nil {
		return false, rtcerr.Wrap(rtcerr.TransportFailed, "DtlsTransport.send", err)
	}
	return true, nil
}
