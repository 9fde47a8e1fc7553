// Package cache stores marshaled parse results keyed by normalized
// input text. Values are immutable once written, so concurrent
// identical requests may both miss and both populate; last write wins
// without coordination.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Store is the response cache consumed by the parse service.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Close() error
}

// Key derives the cache key from the raw input text: lowercase,
// whitespace collapsed, then hashed. The key is never derived from the
// rendered prompt, so identical inputs share a key regardless of how
// large the category list in the prompt was.
func Key(inputText string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(inputText)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
