package utils

import (
	"crypto/rand"
	"encoding/hex"
)

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewBackupID returns a fresh secret backup identifier ("key_" plus 16 hex
// characters). It is the only credential for the one-time rescue path and
// must never be derivable from the payment ID, so it is drawn from
// crypto/rand at record creation.
func NewBackupID() (string, error) {
	raw, err := randomHex(8)
	if err != nil {
		return "", err
	}
	return "key_" + raw, nil
}

// NewReservationCode returns a short human-readable reservation code of the
// form "TN-XXXX". The code is shown to the buyer and included in emails; it
// carries no authority on its own.
func NewReservationCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, 4)
	for i, b := range buf {
		code[i] = codeCharset[int(b)%len(codeCharset)]
	}
	return "TN-" + string(code), nil
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
