// Package checksum computes the content digests used as note ETags.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Matches reports whether an If-Match style value names the digest sum.
// Surrounding quotes and a weak-validator prefix are ignored.
func Matches(ifMatch, sum string) bool {
	v := strings.TrimSpace(ifMatch)
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	return strings.EqualFold(v, sum)
}
