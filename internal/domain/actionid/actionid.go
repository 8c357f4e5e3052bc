// Package actionid canonicalizes action identifiers coming from authored
// scenario data and recorded timelines.
package actionid

import (
	"strings"
	"unicode"
)

// Normalize returns the canonical form of an action identifier.
// Non-string values (including nil) normalize to "". Leading and trailing
// runs of whitespace and double quotes are removed, so `" \"A\" "` and `"A"`
// both become A and a normalized id never changes when normalized again.
func Normalize(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimFunc(s, isWrapping)
}

func isWrapping(r rune) bool {
	return r == '"' || unicode.IsSpace(r)
}
