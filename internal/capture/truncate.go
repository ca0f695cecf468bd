package capture

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"unicode/utf8"
)

func truncateBytes(in []byte, maxBytes int) ([]byte, bool, int, string) {
	if maxBytes <= 0 || len(in) <= maxBytes {
		return in, false, len(in), ""
	}
	sum := sha256.Sum256(in)
	return in[:maxBytes], true, len(in), hex.EncodeToString(sum[:])
}

// truncateStringBytes cuts at most maxBytes and backs off to a rune boundary
// so payloads stay valid UTF-8 in JSON output.
func truncateStringBytes(in string, maxBytes int) (string, bool, int, string) {
	out, truncated, originalSize, sum := truncateBytes([]byte(in), maxBytes)
	for i := 0; truncated && i < utf8.UTFMax-1 && len(out) > 0; i++ {
		if r, size := utf8.DecodeLastRune(out); r != utf8.RuneError || size != 1 {
			break
		}
		out = out[:len(out)-1]
	}
	return string(out), truncated, originalSize, sum
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
