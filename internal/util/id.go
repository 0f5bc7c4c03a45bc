package util

import (
	"crypto/rand"
	"encoding/hex"
)

// ProvisionalID returns a client-local placeholder ID for optimistic
// entities. The "tmp-" prefix keeps it distinguishable from server IDs
// until reconciliation replaces it.
func ProvisionalID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return "tmp-" + hex.EncodeToString(b)
}
