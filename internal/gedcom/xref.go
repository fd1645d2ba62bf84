package gedcom

import (
	"regexp"
	"strings"
)

// XrefType is the record-type letter embedded in a cross-reference token
type XrefType string

const (
	XrefIndividual XrefType = "I"
	XrefFamily     XrefType = "F"
	XrefSource     XrefType = "S"
)

// maxXrefIDLen bounds the native-ID portion of a generated token
const maxXrefIDLen = 20

var xrefPattern = regexp.MustCompile(`^@[^@\s][^@]*@$`)

// GenerateXref derives a cross-reference token from a native identifier.
// Non-alphanumeric characters are dropped and the remainder is truncated to
// 20 characters, so distinct identifiers may map to the same token.
func GenerateXref(t XrefType, nativeID string) string {
	var b strings.Builder
	b.Grow(len(nativeID))
	for _, r := range nativeID {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == maxXrefIDLen {
				break
			}
		}
	}
	return "@" + string(t) + b.String() + "@"
}

// IsXref reports whether s has the shape of a cross-reference token
func IsXref(s string) bool {
	return xrefPattern.MatchString(s)
}

// XrefCollisions returns, for every token produced by more than one distinct
// identifier, the identifiers that produce it in input order.
func XrefCollisions(t XrefType, nativeIDs []string) map[string][]string {
	byToken := make(map[string][]string)
	seen := make(map[string]bool)
	for _, id := range nativeIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		token := GenerateXref(t, id)
		byToken[token] = append(byToken[token], id)
	}

	collisions := make(map[string][]string)
	for token, ids := range byToken {
		if len(ids) > 1 {
			collisions[token] = ids
		}
	}
	return collisions
}
