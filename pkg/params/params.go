// Package params encodes string-keyed parameters to the "k=v&k=v" form
// used by query strings and application/x-www-form-urlencoded bodies.
//
// Values are escaped with an alphanumeric-safe set: ASCII letters and digits
// are kept, every other byte is percent-encoded, including characters that
// would otherwise be valid in a URL. Keys are used as they are.
package params

import (
	"maps"
	"slices"
	"strings"
	"unicode/utf8"
)

const upperHex = "0123456789ABCDEF"

// Encode joins the parameters as "key=value" pairs separated by "&".
// Keys are emitted in sorted order. Nil or empty map results in an empty string.
//
// A value which cannot be escaped degrades to an empty string, the other entries are not affected.
func Encode(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}

	var out strings.Builder
	for i, key := range slices.Sorted(maps.Keys(params)) {
		if i > 0 {
			out.WriteByte('&')
		}
		value, _ := Escape(params[key])
		out.WriteString(key)
		out.WriteByte('=')
		out.WriteString(value)
	}
	return out.String()
}

// Escape percent-encodes all bytes of the value except ASCII letters and digits.
// The value must be a valid UTF-8 string, otherwise ("", false) is returned.
func Escape(value string) (string, bool) {
	if !utf8.ValidString(value) {
		return "", false
	}

	var out strings.Builder
	out.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if isAlphanumeric(c) {
			out.WriteByte(c)
		} else {
			out.WriteByte('%')
			out.WriteByte(upperHex[c>>4])
			out.WriteByte(upperHex[c&15])
		}
	}
	return out.String(), true
}

func isAlphanumeric(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}
