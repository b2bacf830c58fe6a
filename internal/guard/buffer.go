// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

// Package guard holds the PKCS8-encoded ECDSA private key backing a
// PeerConnection's DTLS identity (cert.Certificate) in memory that
// never touches the Go heap: mmap(MAP_ANONYMOUS) outside the garbage
// collector's reach, mlock against swap, madvise(MADV_DONTDUMP) to
// keep it out of core dumps, and a forced zero on Close. The key
// spends its whole life in exactly one KeyBuffer, from the moment
// Generate/Load produces its PKCS8 DER to the moment the owning
// Certificate is closed.
package guard

import (
	"crypto/x509"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// KeyBuffer holds one PKCS8-encoded private key in guarded memory. A
// KeyBuffer must not be copied after creation; DTLS handshakes that
// need the key call PKCS8 and reparse it rather than holding a plain
// *ecdsa.PrivateKey anywhere.
type KeyBuffer struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

// NewKeyBuffer validates that pkcs8 parses as a private key, copies it
// into a guarded mmap region, and zeroes the caller's copy in place so
// the cleartext key exists nowhere else once this call returns.
func NewKeyBuffer(pkcs8 []byte) (*KeyBuffer, error) {
	if len(pkcs8) == 0 {
		return nil, fmt.Errorf("guard: cannot guard an empty key")
	}
	if _, err := x509.ParsePKCS8PrivateKey(pkcs8); err != nil {
		return nil, fmt.Errorf("guard: refusing to guard unparseable PKCS8 key: %w", err)
	}

	data, err := unix.Mmap(-1, 0, len(pkcs8), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("guard: mmap failed: %w", err)
	}
	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("guard: mlock failed: %w", err)
	}
	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		unix.Munmap(data)
		return nil, fmt.Errorf("guard: madvise(MADV_DONTDUMP) failed: %w", err)
	}

	copy(data, pkcs8)
	for i := range pkcs8 {
		pkcs8[i] = 0
	}

	return &KeyBuffer{data: data}, nil
}

// PKCS8 returns the guarded key's DER encoding. The slice points
// directly into the mmap region; callers reparse it on each use
// (cert.Certificate.TLSCertificate does) rather than retaining it.
// Panics if the buffer has been closed — a closed key should never be
// reachable from a live DTLS handshake.
func (k *KeyBuffer) PKCS8() []byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		panic("guard: read from a closed key buffer")
	}
	return k.data
}

// Close zeros, unlocks, and unmaps the key. Idempotent; called once by
// Certificate.Close when the identity is no longer needed.
func (k *KeyBuffer) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true

	for i := range k.data {
		k.data[i] = 0
	}

	var firstErr error
	if err := unix.Munlock(k.data); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("guard: munlock failed: %w", err)
	}
	if err := unix.Munmap(k.data); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("guard: munmap failed: %w", err)
	}
	k.data = nil
	return firstErr
}
