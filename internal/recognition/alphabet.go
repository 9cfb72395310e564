package recognition

import (
	"strings"
	"unicode"
)

const (
	CyrillicUpper = "АБВГДЕЖЗИКЛМНОПРСТУФХЦЧШЩЫЭЮЯ"
	LatinLower    = "abcdefghijklmnopqrstuvwxyz"
	LatinUpper    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Digits        = "0123456789"

	DefaultWhitelist = CyrillicUpper + LatinLower + LatinUpper + Digits
)

// Filter trims the engine output and drops every rune outside whitelist.
// It returns the cleaned text and the number of runes removed, not counting
// the surrounding whitespace.
func Filter(text, whitelist string) (string, int) {
	text = strings.TrimSpace(text)

	var b strings.Builder
	b.Grow(len(text))
	dropped := 0
	for _, r := range text {
		if strings.ContainsRune(whitelist, r) {
			b.WriteRune(r)
			continue
		}
		dropped++
	}
	return b.String(), dropped
}

// Contains reports whether every rune of text is in whitelist.
func Contains(text, whitelist string) bool {
	for _, r := range text {
		if !strings.ContainsRune(whitelist, r) {
			return false
		}
	}
	return true
}

// HasWhitespace reports whether whitelist allows whitespace runes.
func HasWhitespace(whitelist string) bool {
	return strings.IndexFunc(whitelist, unicode.IsSpace) >= 0
}
