package common

import "unicode/utf8"

// TruncateUTF8 returns the longest prefix of s that is at most max bytes and
// does not split a rune
func TruncateUTF8(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
