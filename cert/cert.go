// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

// Package cert implements the long-lived DTLS identity every
// PeerConnection presents: an ECDSA P-256 keypair, a self-signed X.509
// certificate, and the SHA-256 fingerprint advertised in SDP and
// checked against the peer's handshake certificate (spec §4.5). See
// also the testable property in spec §8: for every PeerConnection that
// reaches Connected, the remote description's fingerprint must equal
// the SHA-256 of the peer's actual DTLS certificate.
package cert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/corvid-labs/rtc/internal/guard"
)

// Certificate is a self-signed DTLS identity. The private key is held
// in a guard.KeyBuffer (mmap-backed, locked against swap, zeroed on
// Close) since it never needs to touch disk in plaintext.
type Certificate struct {
	privateKey  *guard.KeyBuffer // PKCS8 DER
	DER         []byte           // self-signed certificate, DER
	Fingerprint string           // "AA:BB:...:FF", colon-hex SHA-256 of DER
}

// Generate creates a fresh ECDSA P-256 keypair and a self-signed
// certificate valid for validity (one year if zero or negative).
func Generate(commonName string, validity time.Duration) (*Certificate, error) {
	if commonName == "" {
		commonName = "rtc"
	}
	if validity <= 0 {
		validity = 365 * 24 * time.Hour
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cert: generating ECDSA key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("cert: generating serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(validity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("cert: creating self-signed certificate: %w", err)
	}

	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cert: marshaling private key: %w", err)
	}
	guarded, err := guard.NewKeyBuffer(pkcs8)
	if err != nil {
		return nil, fmt.Errorf("cert: guarding private key: %w", err)
	}

	return &Certificate{
		privateKey:  guarded,
		DER:         der,
		Fingerprint: fingerprintOf(der),
	}, nil
}

func fingerprintOf(der []byte) string {
	sum := sha256.Sum256(der)
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = strings.ToUpper(hex.EncodeToString([]byte{b}))
	}
	return strings.Join(parts, ":")
}

// SdpFingerprint renders the certificate's fingerprint as an SDP
// a=fingerprint attribute value ("sha-256 AA:BB:...").
func (c *Certificate) SdpFingerprint() string {
	return "sha-256 " + c.Fingerprint
}

// TLSCertificate returns a crypto/tls.Certificate suitable for
// pion/dtls's Config.Certificates, reconstructing the ecdsa.PrivateKey
// from the guarded buffer on every call rather than caching it in the
// clear.
func (c *Certificate) TLSCertificate() (tls.Certificate, error) {
	key, err := x509.ParsePKCS8PrivateKey(c.privateKey.PKCS8())
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("cert: parsing guarded private key: %w", err)
	}
	return tls.Certificate{
		Certificate: [][]byte{c.DER},
		PrivateKey:  key,
	}, nil
}

// Close releases the guarded private key memory. Idempotent.
func (c *Certificate) Close() error {
	if c.privateKey != nil {
		return c.privateKey.Close()
	}
	return nil
}

// VerifyFingerprint reports whether der's SHA-256 fingerprint matches
// the colon-hex fingerprint advertised in a remote Description (spec
// §4.5's handshake-completion check).
func VerifyFingerprint(der []byte, advertised string) bool {
	advertised = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(advertised)), "sha-256 ")
	return strings.EqualFold(fingerprintOf(der), advertised)
}
