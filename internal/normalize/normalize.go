// Package normalize rewrites obvious patterns outside redaction markers:
// age expressions, "yr" abbreviations, "pt" for patient, and clock times.
package normalize

import (
	"regexp"
)

// Tokens emitted by the normalizer.
const (
	TokenYearOld = "t_year_old"
	TokenYears   = "years"
	TokenPatient = "patient"
)

// Stage is one global rewrite over the whole document.
type Stage struct {
	Name    string
	Pattern *regexp.Regexp
	Rewrite func(match string) string
}

// Stages run in order; each stage sees the previous stage's output.
var Stages = []Stage{
	{
		// years old, year old, yearold, y.o., y/o, yo, yrs old
		Name:    "age",
		Pattern: regexp.MustCompile(`(?i)\byears? ?old\b|\by(?:o|r)*[ ./-]*o(?:ld)?\b`),
		Rewrite: constant(TokenYearOld),
	},
	{
		Name:    "years",
		Pattern: regexp.MustCompile(`\byr['s]*\b`),
		Rewrite: constant(TokenYears),
	},
	{
		// PT also means physical therapy; that reading is not distinguished.
		Name:    "patient",
		Pattern: regexp.MustCompile(`\b(?:IN|OU?T) PT\b|\b(?i:pt)\b\.?`),
		Rewrite: constant(TokenPatient),
	},
	{
		Name:    "clock",
		Pattern: regexp.MustCompile(`(?i)\d{0,2}:\d{0,2} \b[ap]\.?m\.?\b`),
		Rewrite: ClassifyTime,
	},
	{
		Name:    "redacted_hour",
		Pattern: regexp.MustCompile(`(?i)\[\*\*\d{2}\*\*\] \b[ap].?m.?\b`),
		Rewrite: ClassifyTime,
	},
}

// Apply runs every stage over text.
func Apply(text string) string {
	out, _ := ApplyWithCounts(text)
	return out
}

// ApplyWithCounts runs every stage and reports, per stage name, how many
// matches were rewritten to something different.
func ApplyWithCounts(text string) (string, map[string]int) {
	counts := make(map[string]int)
	for _, s := range Stages {
		rewrite := s.Rewrite
		name := s.Name
		text = s.Pattern.ReplaceAllStringFunc(text, func(match string) string {
			out := rewrite(match)
			if out != match {
				counts[name]++
			}
			return out
		})
	}
	return text, counts
}

func constant(tok string) func(string) string {
	return func(string) string { return tok }
}
