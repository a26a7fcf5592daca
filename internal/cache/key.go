package cache

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

// Key joins parts into a cache key. Parts longer than a few words are
// replaced by a short BLAKE3 fingerprint so keys stay bounded.
func Key(parts ...string) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		if len(p) > 64 {
			p = Fingerprint(p)
		}
		out[i] = p
	}
	return strings.Join(out, ":")
}

// Fingerprint returns the first 16 bytes of BLAKE3(s), hex encoded.
func Fingerprint(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}
