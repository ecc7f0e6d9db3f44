// Package classifier assigns redaction markers to semantic categories.
//
// Each category (name, place, identifier, date, digits) is an ordered list
// of rules evaluated against the normalized marker content; the first rule
// that fires decides the canonical token. Categories are loaded from the
// embedded rule tables and can be overridden by an operator rule file.
package classifier

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dativo-io/notescrub/internal/marker"
)

// ErrInvalidRule is returned when a rule or category cannot be compiled.
var ErrInvalidRule = errors.New("invalid redaction rule")

// Rule is a compiled (predicate, token) pair.
type Rule struct {
	Token    string
	AllOf    []string
	AnyOf    []string
	Patterns []*regexp.Regexp
}

// Match reports whether the rule fires on normalized marker content.
// Every AllOf substring must be present; if any AnyOf or Patterns
// conditions exist, at least one of them must hit as well.
func (r Rule) Match(normalized string) bool {
	for _, s := range r.AllOf {
		if !strings.Contains(normalized, s) {
			return false
		}
	}
	if len(r.AnyOf) == 0 && len(r.Patterns) == 0 {
		return true
	}
	for _, s := range r.AnyOf {
		if strings.Contains(normalized, s) {
			return true
		}
	}
	for _, re := range r.Patterns {
		if re.MatchString(normalized) {
			return true
		}
	}
	return false
}

// Classifier is one category's rule cascade.
type Classifier struct {
	Category           string
	Rules              []Rule
	SkipBeforeMeridiem bool
}

// Classify returns the token of the first rule matching normalized, or
// ok=false when no rule fires.
func (c *Classifier) Classify(normalized string) (token string, ok bool) {
	for _, r := range c.Rules {
		if r.Match(normalized) {
			return r.Token, true
		}
	}
	return "", false
}

// Resolve returns the replacement text for m. Unmatched markers keep their
// raw text, except markers with no description, which are dropped.
func (c *Classifier) Resolve(m marker.Marker) string {
	if tok, ok := c.Classify(m.Normalized); ok {
		return tok
	}
	if marker.IsEmpty(m.Raw) {
		return ""
	}
	return m.Raw
}

// Skips reports whether this classifier must leave m untouched.
func (c *Classifier) Skips(m marker.Marker) bool {
	return c.SkipBeforeMeridiem && marker.IsRedactedHour(m)
}

// Tokens lists the tokens this classifier can emit, in rule order.
func (c *Classifier) Tokens() []string {
	out := make([]string, len(c.Rules))
	for i, r := range c.Rules {
		out[i] = r.Token
	}
	return out
}

// Config returns the rules of c in rule file form.
func (c *Classifier) Config() CategoryConfig {
	cc := CategoryConfig{Name: c.Category, SkipBeforeMeridiem: c.SkipBeforeMeridiem}
	for _, r := range c.Rules {
		rc := RuleConfig{Token: r.Token, AllOf: r.AllOf, AnyOf: r.AnyOf}
		for _, re := range r.Patterns {
			rc.Patterns = append(rc.Patterns, re.String())
		}
		cc.Rules = append(cc.Rules, rc)
	}
	return cc
}

// Ruleset is the ordered list of category classifiers, one per resolver pass.
type Ruleset struct {
	classifiers []*Classifier
}

// Classifiers returns the classifiers in pass order.
func (rs *Ruleset) Classifiers() []*Classifier {
	return rs.classifiers
}

// Category returns the classifier for name, or nil.
func (rs *Ruleset) Category(name string) *Classifier {
	for _, c := range rs.classifiers {
		if c.Category == name {
			return c
		}
	}
	return nil
}

// RuleFile returns the effective rules of rs, in pass order.
func (rs *Ruleset) RuleFile() RuleFile {
	rf := RuleFile{Categories: make([]CategoryConfig, 0, len(rs.classifiers))}
	for _, c := range rs.classifiers {
		rf.Categories = append(rf.Categories, c.Config())
	}
	return rf
}

// Option configures a Ruleset via the functional options pattern.
type Option func(*rulesetConfig)

type rulesetConfig struct {
	ruleFile           string
	enabledCategories  []string
	disabledCategories []string
	customCategories   []CategoryConfig
}

// WithRuleFile loads category overrides from an operator rule file.
// If the file does not exist, it is silently skipped.
func WithRuleFile(path string) Option {
	return func(c *rulesetConfig) { c.ruleFile = path }
}

// WithEnabledCategories keeps only the named categories.
func WithEnabledCategories(names []string) Option {
	return func(c *rulesetConfig) { c.enabledCategories = names }
}

// WithDisabledCategories drops the named categories.
func WithDisabledCategories(names []string) Option {
	return func(c *rulesetConfig) { c.disabledCategories = names }
}

// WithCustomCategories adds or replaces categories on top of the rule file.
func WithCustomCategories(categories []CategoryConfig) Option {
	return func(c *rulesetConfig) { c.customCategories = categories }
}

// NewRuleset builds a Ruleset. Without options it is equivalent to Defaults.
func NewRuleset(opts ...Option) (*Ruleset, error) {
	var cfg rulesetConfig
	for _, o := range opts {
		o(&cfg)
	}

	// Layer 1: embedded defaults
	defaults, err := DefaultCategories()
	if err != nil {
		return nil, fmt.Errorf("loading default categories: %w", err)
	}

	// Layer 2: operator rule file (optional)
	var fileCats []*CategoryConfig
	if cfg.ruleFile != "" {
		rf, err := LoadRuleFile(cfg.ruleFile)
		if err != nil {
			return nil, fmt.Errorf("loading rule file: %w", err)
		}
		if rf != nil {
			fileCats = toPtrSlice(rf.Categories)
		}
	}

	// Layer 3: caller overrides
	var customCats []*CategoryConfig
	if len(cfg.customCategories) > 0 {
		customCats = toPtrSlice(cfg.customCategories)
	}

	merged := MergeCategories(toPtrSlice(defaults), fileCats, customCats)
	merged = FilterCategories(merged, cfg.enabledCategories, cfg.disabledCategories)

	compiled, err := CompileCategories(merged)
	if err != nil {
		return nil, fmt.Errorf("compiling categories: %w", err)
	}
	return &Ruleset{classifiers: compiled}, nil
}

// MustNewRuleset is like NewRuleset but panics on error.
func MustNewRuleset(opts ...Option) *Ruleset {
	rs, err := NewRuleset(opts...)
	if err != nil {
		panic(fmt.Sprintf("classifier.NewRuleset: %v", err))
	}
	return rs
}
