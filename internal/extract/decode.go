package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

const cyrillic = "АБВГДЕЁЖЗИЙКЛМНОПРСТУФХЦЧШЩЪЫЬЭЮЯабвгдеёжзийклмнопрстуфхцчшщъыьэюя"

// Candidate encodings for recovering a cp437-mangled name, tried in priority
// order.
var recodings = []*charmap.Charmap{
	charmap.CodePage866,
	charmap.Windows1251,
	charmap.ISO8859_1,
}

// IsReadable reports whether every character of name belongs to the allow
// list: ASCII letters, digits, punctuation and space, plus the full Cyrillic
// alphabet including Ёё. It is the acceptance oracle for decoding attempts.
func IsReadable(name string) bool {
	for _, r := range name {
		switch {
		case r == ' ':
		case r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)):
		case strings.ContainsRune(cyrillic, r):
		default:
			return false
		}
	}
	return true
}

// DecodeFilename recovers a human-readable filename from one whose bytes
// were mis-decoded under cp437 by an archive tool. Already-readable names are
// returned unchanged. Otherwise the characters are re-encoded as cp437 bytes
// and decoded under each candidate encoding in turn; the first result that
// passes IsReadable wins. If nothing works the original name comes back
// untouched: a failed decode is a no-op, never an error.
func DecodeFilename(name string) string {
	if IsReadable(name) {
		return name
	}

	raw, err := charmap.CodePage437.NewEncoder().String(name)
	if err != nil {
		return name
	}
	for _, cm := range recodings {
		decoded, err := cm.NewDecoder().String(raw)
		if err != nil {
			continue
		}
		if IsReadable(decoded) {
			return decoded
		}
	}
	return name
}
