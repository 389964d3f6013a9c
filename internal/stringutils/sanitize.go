package stringutils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeUnicodeString strips null bytes and control characters that break
// SQLite text columns and confuse prompts. Tab, newline and carriage return
// survive; everything else below 0x20, DEL and the C1 range is dropped.
// Clean input is returned unchanged without allocating.
func SanitizeUnicodeString(s string) string {
	if utf8.ValidString(s) && !hasControlChars(s) {
		return s
	}

	var builder strings.Builder
	builder.Grow(len(s))

	for _, r := range s {
		if isDroppedControl(r) {
			continue
		}
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			builder.WriteRune(r)
		}
	}

	return builder.String()
}

func isDroppedControl(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return false
	case r < 32 || r == 127:
		return true
	case r >= 128 && r <= 159:
		return true
	}
	return false
}

func hasControlChars(s string) bool {
	for _, r := range s {
		if isDroppedControl(r) {
			return true
		}
	}
	return false
}
