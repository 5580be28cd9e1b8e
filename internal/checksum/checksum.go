// Package checksum derives content keys for vault files and card images.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// KeyLength is the length of a Key in hex characters.
const KeyLength = 16

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Key returns a short content key for data: the first KeyLength hex
// characters of its SHA-256 digest. Frames carry it once per card.
func Key(data []byte) string {
	return Sum(data)[:KeyLength]
}
