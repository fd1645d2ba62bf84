package gedcom

import "strings"

var newlineReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// EscapeText prepares a free-text value for a single GEDCOM line: newlines
// become a single space and every "@" is doubled.
func EscapeText(s string) string {
	s = newlineReplacer.Replace(s)
	return strings.ReplaceAll(s, "@", "@@")
}

// UnescapeText collapses doubled "@" characters produced by EscapeText
func UnescapeText(s string) string {
	return strings.ReplaceAll(s, "@@", "@")
}
