package domain

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// TraceIDLength is the length of a canonical trace id: 40 lowercase hex
// characters with no separators.
const TraceIDLength = 40

// NewTraceID generates a fresh canonical trace id.
func NewTraceID() string {
	buf := make([]byte, TraceIDLength/2)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// NormalizeTraceID canonicalizes a caller-supplied trace id. Separators are
// stripped and hex digits lowercased; anything that does not reduce to a
// 40-character hex string is replaced with a freshly generated id. Malformed
// ids are never rejected.
func NormalizeTraceID(id string) string {
	cleaned := strings.ToLower(strings.ReplaceAll(id, "-", ""))
	if !IsValidTraceID(cleaned) {
		return NewTraceID()
	}
	return cleaned
}

// IsValidTraceID reports whether id is already in canonical form.
func IsValidTraceID(id string) bool {
	if len(id) != TraceIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
