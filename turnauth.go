// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"time"
)

// TURNCredentialsFromSecret mints a short-lived long-term TURN
// credential pair from a shared secret, following the coturn/RFC 5389
// REST API convention: username is "<unix-expiry>:<label>", password
// is base64(HMAC-SHA1(secret, username)). Grounded on the teacher's
// ICEConfigFromTURN adapter (transport/ice.go), which shapes whatever
// credentials it's handed into an IceServer; this module has no
// Matrix homeserver to fetch credentials from, so it mints them
// directly instead of relaying a fetched response.
func TURNCredentialsFromSecret(urls []string, secret, label string, ttl time.Duration, now time.Time) IceServer {
	username := fmt.Sprintf("%d:%s", now.Add(ttl).Unix(), label)

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(username))
	password := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return IceServer{
		URLs:       urls,
		Username:   username,
		Credential: password,
	}
}
