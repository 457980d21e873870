package nutrition

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes a food name into a cache key: lower-cased with
// everything except letters stripped, so "Fried  Rice!" and "friedrice"
// collide. Letters are unicode letters, not just ASCII, so CJK food names
// keep a usable key. Pure and total; an empty result means the input had no
// letters at all and must never match a cache entry.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
