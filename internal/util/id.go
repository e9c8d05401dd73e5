// Package util holds small helpers shared across the proxy and the record
// service.
package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random identifier, optionally tagged with a type prefix
// ("usr", "opp", "int"). Ids are opaque to every consumer; the prefix only
// helps a human reading logs.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
