// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

// Persistence for Certificate: encrypt the private key + certificate
// bundle to an age recipient for storage at rest, and decrypt it back
// with the matching identity. Grounded on the age usage pattern in
// lib/sealed (encrypt to recipients, decrypt with an identity that
// never lands on the heap longer than age's own parsing requires).
package cert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"filippo.io/age"

	"github.com/corvid-labs/rtc/internal/guard"
)

type bundle struct {
	PrivateKeyPKCS8 []byte `json:"private_key_pkcs8"`
	CertificateDER  []byte `json:"certificate_der"`
}

// SaveEncrypted serializes the certificate and encrypts it to
// recipient (an age1... public key) before writing it to path.
func (c *Certificate) SaveEncrypted(path string, recipient string) error {
	ageRecipient, err := age.ParseX25519Recipient(recipient)
	if err != nil {
		return fmt.Errorf("cert: parsing recipient key: %w", err)
	}

	plaintext, err := json.Marshal(bundle{
		PrivateKeyPKCS8: c.privateKey.PKCS8(),
		CertificateDER:  c.DER,
	})
	if err != nil {
		return fmt.Errorf("cert: marshaling bundle: %w", err)
	}
	defer zero(plaintext)

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, ageRecipient)
	if err != nil {
		return fmt.Errorf("cert: creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return fmt.Errorf("cert: writing plaintext: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("cert: finalizing encryption: %w", err)
	}

	if err := os.WriteFile(path, ciphertext.Bytes(), 0o600); err != nil {
		return fmt.Errorf("cert: writing %s: %w", path, err)
	}
	return nil
}

// LoadEncrypted reads and decrypts a certificate bundle written by
// SaveEncrypted, using identity (an AGE-SECRET-KEY-1... private key).
// identity is zeroed in place before this function returns, matching
// guard.NewKeyBuffer's zero-the-caller's-copy convention for the
// reconstructed ECDSA key below.
func LoadEncrypted(path string, identity []byte) (*Certificate, error) {
	defer zero(identity)

	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cert: reading %s: %w", path, err)
	}

	ageIdentity, err := age.ParseX25519Identity(string(identity))
	if err != nil {
		return nil, fmt.Errorf("cert: parsing identity: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), ageIdentity)
	if err != nil {
		return nil, fmt.Errorf("cert: decrypting %s: %w", path, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("cert: reading decrypted bundle: %w", err)
	}
	defer zero(plaintext)

	var b bundle
	if err := json.Unmarshal(plaintext, &b); err != nil {
		return nil, fmt.Errorf("cert: unmarshaling bundle: %w", err)
	}

	guarded, err := guard.NewKeyBuffer(b.PrivateKeyPKCS8)
	if err != nil {
		return nil, fmt.Errorf("cert: guarding stored private key: %w", err)
	}

	return &Certificate{
		privateKey:  guarded,
		DER:         b.CertificateDER,
		Fingerprint: fingerprintOf(b.CertificateDER),
	}, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
