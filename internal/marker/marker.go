// Package marker locates de-identification markers of the form [** ... **]
// in clinical note text and rewrites them in place.
package marker

import (
	"regexp"
	"strings"
)

// Pattern matches a single redaction marker. The inner group is lazy so
// adjacent markers on one line are captured separately.
var Pattern = regexp.MustCompile(`(?i)\[\*\*(.*?)\*\*\]`)

// meridiemPrefix matches am/pm text directly after a marker, e.g. " AM" or " p.m.".
var meridiemPrefix = regexp.MustCompile(`(?i)^ \b[ap].?m.?\b`)

var twoDigits = regexp.MustCompile(`^\d{2}$`)

// Marker is one redaction marker found in a document.
type Marker struct {
	Raw        string // full match including delimiters
	Content    string // text between the delimiters
	Normalized string // Content trimmed and lower-cased
	Start      int    // byte offset of Raw in the document
	End        int
	After      string // remainder of the document following the marker
}

// Find returns every marker in text in document order. Markers never overlap.
func Find(text string) []Marker {
	idx := Pattern.FindAllStringSubmatchIndex(text, -1)
	if len(idx) == 0 {
		return nil
	}
	markers := make([]Marker, 0, len(idx))
	for _, loc := range idx {
		markers = append(markers, newMarker(text, loc))
	}
	return markers
}

// Count returns the number of markers in text.
func Count(text string) int {
	return len(Pattern.FindAllStringIndex(text, -1))
}

// Replace returns text with every marker replaced by fn's output. Text
// outside markers is copied verbatim and relative order is preserved.
func Replace(text string, fn func(Marker) string) string {
	idx := Pattern.FindAllStringSubmatchIndex(text, -1)
	if len(idx) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, loc := range idx {
		b.WriteString(text[last:loc[0]])
		b.WriteString(fn(newMarker(text, loc)))
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// IsEmpty reports whether raw is made only of delimiter characters
// (space, asterisk, square brackets), i.e. the marker carries no description.
func IsEmpty(raw string) bool {
	if raw == "" {
		return false
	}
	for _, ch := range raw {
		switch ch {
		case ' ', '*', '[', ']':
		default:
			return false
		}
	}
	return true
}

// IsRedactedHour reports whether m is a two-digit marker immediately
// followed by am/pm text, such as "[**84**] AM". The hour itself was
// redacted, so these are left for the time normalizer.
func IsRedactedHour(m Marker) bool {
	return twoDigits.MatchString(m.Content) && meridiemPrefix.MatchString(m.After)
}

func newMarker(text string, loc []int) Marker {
	content := text[loc[2]:loc[3]]
	return Marker{
		Raw:        text[loc[0]:loc[1]],
		Content:    content,
		Normalized: strings.ToLower(strings.TrimSpace(content)),
		Start:      loc[0],
		End:        loc[1],
		After:      text[loc[1]:],
	}
}
