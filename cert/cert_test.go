// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package cert

import (
	"path/filepath"
	"testing"
	"time"

	"filippo.io/age"
)

func TestGenerateFingerprint(t *testing.T) {
	c, err := Generate("peer-a", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	defer c.Close()

	if c.Fingerprint == "" {
		t.Fatal("Fingerprint is empty")
	}
	if !VerifyFingerprint(c.DER, c.SdpFingerprint()) {
		t.Fatal("VerifyFingerprint() = false for the certificate's own fingerprint")
	}
	if VerifyFingerprint(c.DER, "sha-256 00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00") {
		t.Fatal("VerifyFingerprint() = true for a mismatched fingerprint")
	}
}

func TestTLSCertificate(t *testing.T) {
	c, err := Generate("peer-b", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	defer c.Close()

	tlsCert, err := c.TLSCertificate()
	if err != nil {
		t.Fatalf("TLSCertificate() error = %v", err)
	}
	if len(tlsCert.Certificate) != 1 {
		t.Fatalf("len(tlsCert.Certificate) = %d, want 1", len(tlsCert.Certificate))
	}
}

func TestSaveLoadEncrypted(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity() error = %v", err)
	}

	c, err := Generate("peer-c", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	defer c.Close()

	path := filepath.Join(t.TempDir(), "cert.age")
	if err := c.SaveEncrypted(path, identity.Recipient().String()); err != nil {
		t.Fatalf("SaveEncrypted() error = %v", err)
	}

	loaded, err := LoadEncrypted(path, []byte(identity.String()))
	if err != nil {
		t.Fatalf("LoadEncrypted() error = %v", err)
	}
	defer loaded.Close()

	if loaded.Fingerprint != c.Fingerprint {
		t.Fatalf("loaded.Fingerprint = %q, want %q", loaded.Fingerprint, c.Fingerprint)
	}
}
