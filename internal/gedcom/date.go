package gedcom

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var monthAbbrevs = [12]string{
	"JAN", "FEB", "MAR", "APR", "MAY", "JUN",
	"JUL", "AUG", "SEP", "OCT", "NOV", "DEC",
}

// Layouts accepted as calendar dates on export, tried in order
var isoDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var gedcomDatePattern = regexp.MustCompile(`^(\d{1,2})\s+([A-Za-z]{3})\s+(\d{1,4})$`)

// FormatDate converts an ISO-like date ("1984-03-07") to GEDCOM form
// ("7 MAR 1984"). Anything that is not a full calendar date, including
// month-only or year-only fragments, is passed through escaped.
func FormatDate(s string) string {
	trimmed := strings.TrimSpace(s)
	for _, layout := range isoDateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return formatTime(t)
		}
	}
	return EscapeText(s)
}

func formatTime(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), monthAbbrevs[t.Month()-1], t.Year())
}

// ParseDate converts an exact GEDCOM date ("7 MAR 1984") back to ISO form
// ("1984-03-07"). It reports false for approximate, ranged or partial dates
// and for dates that do not exist on the calendar.
func ParseDate(s string) (string, bool) {
	m := gedcomDatePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}

	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	month := monthNumber(m[2])
	if month == 0 {
		return "", false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

func monthNumber(abbrev string) int {
	abbrev = strings.ToUpper(abbrev)
	for i, m := range monthAbbrevs {
		if m == abbrev {
			return i + 1
		}
	}
	return 0
}
