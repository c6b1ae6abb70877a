package meta

import (
	"unicode"
	"unicode/utf8"
)

// AccessorProperty returns the property an accessor method name folds into
// under the given prefix: "getCount" with prefix "get" names "count". With
// an empty prefix, "Count" names "count". The remainder after the prefix
// must start with an upper-case letter; an empty remainder is not an
// accessor.
func AccessorProperty(prefix, method string) (string, bool) {
	if len(method) <= len(prefix) || method[:len(prefix)] != prefix {
		return "", false
	}
	rest := method[len(prefix):]
	r, _ := utf8.DecodeRuneInString(rest)
	if !unicode.IsUpper(r) {
		return "", false
	}
	return Decapitalize(rest), true
}

// AccessorName is the inverse of AccessorProperty.
func AccessorName(prefix, property string) string {
	return prefix + Capitalize(property)
}

// Capitalize upper-cases the first letter of s.
func Capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// Decapitalize lower-cases the first letter of s.
func Decapitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 || unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToLower(r)) + s[n:]
}
