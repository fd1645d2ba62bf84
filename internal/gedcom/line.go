package gedcom

import (
	"regexp"
	"strconv"
	"strings"
)

// LEVEL [XREF] TAG [VALUE]
var linePattern = regexp.MustCompile(`^(\d+)\s+(?:(@[^@\s][^@]*@)\s+)?([A-Za-z0-9_]+)(?:\s+(.*))?$`)

// line is one decoded GEDCOM line
type line struct {
	number int
	level  int
	xref   string
	tag    string
	value  string
}

// parseLine decodes a trimmed, non-blank line. It reports false when the line
// does not fit the grammar.
func parseLine(text string, number int) (line, bool) {
	m := linePattern.FindStringSubmatch(text)
	if m == nil {
		return line{}, false
	}
	level, err := strconv.Atoi(m[1])
	if err != nil {
		return line{}, false
	}
	return line{
		number: number,
		level:  level,
		xref:   m[2],
		tag:    strings.ToUpper(m[3]),
		value:  m[4],
	}, true
}

// splitLines normalizes CRLF and bare CR line endings and strips a UTF-8 BOM
func splitLines(text string) []string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}
