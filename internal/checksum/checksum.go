// Package checksum computes the content digests used as document versions.
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

// Matches reports whether an If-Match style precondition accepts sum. An
// empty precondition or "*" accepts anything; quotes and a weak prefix are
// ignored.
func Matches(precondition, sum string) bool {
	p := strings.TrimSpace(precondition)
	if p == "" || p == "*" {
		return true
	}
	p = strings.TrimPrefix(p, "W/")
	return strings.Trim(p, `"`) == sum
}
