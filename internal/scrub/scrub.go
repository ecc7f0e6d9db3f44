// Package scrub normalizes de-identified clinical notes for downstream NLP.
//
// A note first goes through the redaction resolver, which turns markers
// like [**Hospital1**] into canonical tokens (t_hospital), and then through
// the obvious-pattern normalizer (ages, "pt", clock times). Processing is
// pure and per note; callers may run notes in parallel.
package scrub

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dativo-io/notescrub/internal/classifier"
	"github.com/dativo-io/notescrub/internal/marker"
	"github.com/dativo-io/notescrub/internal/normalize"
	notesotel "github.com/dativo-io/notescrub/internal/otel"
	"github.com/dativo-io/notescrub/internal/resolver"
)

var tracer = notesotel.Tracer("github.com/dativo-io/notescrub/internal/scrub")

var defaultPipeline = &Pipeline{rules: classifier.Defaults, resolver: resolver.New(classifier.Defaults)}

// ProcessNote normalizes one note with the default rules.
func ProcessNote(text string) string {
	return defaultPipeline.Process(text)
}

// Pipeline is a configured resolver plus the normalizer.
type Pipeline struct {
	rules    *classifier.Ruleset
	resolver *resolver.Resolver
}

// Summary describes what happened to a single note.
type Summary struct {
	Markers    int            `json:"markers"`
	Resolved   map[string]int `json:"resolved"` // token -> count
	Removed    int            `json:"removed"`
	Unresolved int            `json:"unresolved"`
	Rewrites   map[string]int `json:"rewrites"` // normalizer stage -> count
}

// New builds a Pipeline; options are passed to classifier.NewRuleset.
func New(opts ...classifier.Option) (*Pipeline, error) {
	rs, err := classifier.NewRuleset(opts...)
	if err != nil {
		return nil, fmt.Errorf("building ruleset: %w", err)
	}
	return &Pipeline{rules: rs, resolver: resolver.New(rs)}, nil
}

// Default returns the pipeline used by ProcessNote.
func Default() *Pipeline {
	return defaultPipeline
}

// Categories returns the resolver pass order.
func (p *Pipeline) Categories() []string {
	return p.resolver.Categories()
}

// Rules returns the ruleset the resolver runs.
func (p *Pipeline) Rules() *classifier.Ruleset {
	return p.rules
}

// Process normalizes text.
func (p *Pipeline) Process(text string) string {
	return normalize.Apply(p.resolver.Resolve(text))
}

// Explain resolves markers only and returns each pass decision.
func (p *Pipeline) Explain(text string) (string, []resolver.Decision) {
	return p.resolver.Explain(text)
}

// ProcessContext is Process with tracing, metrics and a per-note Summary.
func (p *Pipeline) ProcessContext(ctx context.Context, text string) (string, Summary) {
	ctx, span := tracer.Start(ctx, "scrub.process_note")
	defer span.End()

	sum := Summary{
		Markers:  marker.Count(text),
		Resolved: make(map[string]int),
	}

	resolved, decisions := p.resolver.Explain(text)
	for _, d := range decisions {
		if d.Removed() {
			sum.Removed++
			continue
		}
		sum.Resolved[d.Output]++
		recordResolved(ctx, d.Category, d.Output)
	}

	out, rewrites := normalize.ApplyWithCounts(resolved)
	sum.Rewrites = rewrites
	// Redacted hours are markers consumed by the normalizer, not leftovers.
	sum.Unresolved = marker.Count(out)

	recordNote(ctx, sum)

	span.SetAttributes(
		attribute.Int("scrub.markers", sum.Markers),
		attribute.Int("scrub.removed", sum.Removed),
		attribute.Int("scrub.unresolved", sum.Unresolved),
		attribute.Int("scrub.length_in", len(text)),
		attribute.Int("scrub.length_out", len(out)),
	)
	return out, sum
}
