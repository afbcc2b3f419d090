// Package dob normalizes free-text dates of birth to ISO-8601.
package dob

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Accepted birth years, inclusive. Anything outside is treated as a hallucinated or mistyped date.
const (
	MinYear = 1900
	MaxYear = 2026
)

var (
	isoDate   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	allDigits = regexp.MustCompile(`^\d+$`)
	ordinal   = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	ofWord    = regexp.MustCompile(`(?i)\bof\b`)
)

// Parse returns the date as YYYY-MM-DD, or false when the input is unparseable or
// the year is outside [MinYear, MaxYear]. Ambiguous numeric dates are read month first,
// falling back to day first when that fails. Ordinal suffixes and "of" are ignored.
// When the whole input does not parse, contiguous word windows are tried longest first,
// so surrounding words ("I was born on ...") are ignored.
func Parse(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if m := isoDate.FindStringSubmatch(s); m != nil {
		s = m[2] + "/" + m[3] + "/" + m[1]
	}
	s = strings.Join(strings.Fields(ofWord.ReplaceAllString(ordinal.ReplaceAllString(s, "$1"), " ")), " ")
	if t, ok := parseInRange(s); ok {
		return t.Format(time.DateOnly), true
	}
	for _, w := range windows(strings.Fields(s)) {
		if t, ok := parseInRange(w); ok {
			return t.Format(time.DateOnly), true
		}
	}
	return "", false
}

func parseInRange(s string) (time.Time, bool) {
	if allDigits.MatchString(s) && len(s) != 8 {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(s, time.UTC, dateparse.PreferMonthFirst(true))
	if err != nil {
		if t, err = dateparse.ParseIn(s, time.UTC, dateparse.PreferMonthFirst(false)); err != nil {
			return time.Time{}, false
		}
	}
	if t.Year() < MinYear || t.Year() > MaxYear {
		return time.Time{}, false
	}
	return t, true
}

// windows lists every contiguous run of tokens, longest first, left to right,
// with surrounding punctuation trimmed. The full run is skipped; the caller has tried it.
func windows(tokens []string) []string {
	var out []string
	for size := len(tokens) - 1; size >= 1; size-- {
		for i := 0; i+size <= len(tokens); i++ {
			w := strings.Trim(strings.Join(tokens[i:i+size], " "), ".,;:!?()\"'")
			if w != "" {
				out = append(out, w)
			}
		}
	}
	return out
}
