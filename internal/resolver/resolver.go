// Package resolver rewrites redaction markers into canonical tokens by
// running each category classifier as a full pass over the document.
//
// Passes run in ruleset order and each one scans the output of the previous
// pass, so a marker resolved early is no longer a marker for later passes.
package resolver

import (
	"github.com/dativo-io/notescrub/internal/classifier"
	"github.com/dativo-io/notescrub/internal/marker"
)

// Decision records what a pass did with one marker.
type Decision struct {
	Category string `json:"category"`
	Marker   string `json:"marker"`
	Output   string `json:"output"`
}

// Removed reports whether the marker was dropped as empty.
func (d Decision) Removed() bool {
	return d.Output == ""
}

// Resolver applies an ordered list of classifier passes.
type Resolver struct {
	passes []*classifier.Classifier
}

// New builds a Resolver from rs. A nil ruleset uses classifier.Defaults.
func New(rs *classifier.Ruleset) *Resolver {
	if rs == nil {
		rs = classifier.Defaults
	}
	return &Resolver{passes: rs.Classifiers()}
}

// Categories returns the pass names in execution order.
func (r *Resolver) Categories() []string {
	out := make([]string, len(r.passes))
	for i, p := range r.passes {
		out[i] = p.Category
	}
	return out
}

// Resolve returns text with every recognized marker replaced.
func (r *Resolver) Resolve(text string) string {
	return r.resolve(text, nil)
}

// Explain is Resolve plus the list of markers each pass rewrote, in pass
// order. Markers left untouched by every pass do not appear.
func (r *Resolver) Explain(text string) (string, []Decision) {
	var decisions []Decision
	out := r.resolve(text, func(d Decision) {
		decisions = append(decisions, d)
	})
	return out, decisions
}

func (r *Resolver) resolve(text string, record func(Decision)) string {
	for _, pass := range r.passes {
		text = marker.Replace(text, func(m marker.Marker) string {
			if pass.Skips(m) {
				return m.Raw
			}
			out := pass.Resolve(m)
			if record != nil && out != m.Raw {
				record(Decision{Category: pass.Category, Marker: m.Raw, Output: out})
			}
			return out
		})
	}
	return text
}
