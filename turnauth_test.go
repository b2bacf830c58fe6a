// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"testing"
	"time"
)

func TestTURNCredentialsFromSecret(t *testing.T) {
	now := time.Unix(1000, 0)
	ttl := 1 * time.Hour
	s := TURNCredentialsFromSecret([]string{"turn:example.com:3478"}, "sharedsecret", "alice", ttl, now)

	wantExpiry := now.Add(ttl).Unix()
	wantUsername := fmt.Sprintf("%d:alice", wantExpiry)
	if s.Username != wantUsername {
		t.Fatalf("Username = %q, want %q", s.Username, wantUsername)
	}

	mac := hmac.New(sha1.New, []byte("sharedsecret"))
	mac.Write([]byte(s.Username))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if s.Credential != want {
		t.Fatalf("Credential = %q, want %q", s.Credential, want)
	}
	if len(s.URLs) != 1 || s.URLs[0] != "turn:example.com:3478" {
		t.Fatalf("URLs = %v, want [turn:example.com:3478]", s.URLs)
	}
}
