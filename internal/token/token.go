// Package token generates opaque bearer credentials for tickets.
package token

import (
	"crypto/rand"
	"encoding/base64"
)

// 32 bytes of entropy makes brute-force guessing infeasible; the encoded
// token is what gets baked into the QR code and presented at the gate.
const entropyBytes = 32

// New returns a fresh unguessable token. Tokens are never derived from
// sequential ids and are never reused, including for redeemed or voided
// tickets.
func New() string {
	b := make([]byte, entropyBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms; if it does, the
		// process has no business issuing credentials.
		panic("token: read random: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
