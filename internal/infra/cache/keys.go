package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key prefixes for the cache entry families written by the gateway.
const (
	// PrefixSource namespaces cached per-source dispatch results.
	PrefixSource = "source"
	// PrefixAnswer namespaces cached buffered generation answers.
	PrefixAnswer = "answer"
)

// Key builds a deterministic cache key from a prefix and the request
// parts that identify the computation (query text, source id, relevant
// parameters). The parts are hashed so arbitrary query text cannot
// produce oversized or unsafe keys; identical inputs always produce the
// identical key.
func Key(prefix string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return prefix + ":" + hex.EncodeToString(sum[:16])
}
