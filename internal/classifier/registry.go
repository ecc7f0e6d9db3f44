package classifier

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleFile is the top-level YAML structure for a redaction rule file.
type RuleFile struct {
	Categories []CategoryConfig `yaml:"categories" json:"categories"`
}

// CategoryConfig is one resolver pass: an ordered list of rules, first match wins.
type CategoryConfig struct {
	Name    string       `yaml:"name" json:"name"`
	Enabled *bool        `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Rules   []RuleConfig `yaml:"rules" json:"rules"`
	// SkipBeforeMeridiem leaves two-digit markers followed by am/pm alone
	// so the time normalizer can turn them into an hour token.
	SkipBeforeMeridiem bool `yaml:"skip_before_meridiem,omitempty" json:"skip_before_meridiem,omitempty"`
}

// RuleConfig maps marker content to a canonical token.
type RuleConfig struct {
	Token    string   `yaml:"token" json:"token"`
	AllOf    []string `yaml:"all_of,omitempty" json:"all_of,omitempty"`
	AnyOf    []string `yaml:"any_of,omitempty" json:"any_of,omitempty"`
	Patterns []string `yaml:"patterns,omitempty" json:"patterns,omitempty"`
}

// isEnabled returns true if the category is enabled (defaults to true when nil).
func (c *CategoryConfig) isEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// ParseRuleFile parses rule YAML bytes into a RuleFile.
func ParseRuleFile(data []byte) (*RuleFile, error) {
	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing rule YAML: %w", err)
	}
	return &rf, nil
}

// LoadRuleFile reads, validates and parses a rule file from disk.
// Returns nil (not an error) if the file does not exist, so callers can
// treat a missing operator rule file as a no-op.
func LoadRuleFile(path string) (*RuleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading rule file %s: %w", path, err)
	}
	if err := ValidateRuleFile(data); err != nil {
		return nil, fmt.Errorf("rule file %s: %w", path, err)
	}
	return ParseRuleFile(data)
}

// MergeCategories merges layers of categories: defaults, then operator
// overrides, then per-call overrides. A later category replaces an earlier
// one with the same Name in place, so pass order is kept. New categories
// are appended and run after the existing ones.
func MergeCategories(layers ...[]*CategoryConfig) []CategoryConfig {
	index := make(map[string]int)
	var merged []CategoryConfig

	for _, layer := range layers {
		for _, cc := range layer {
			if cc == nil {
				continue
			}
			if idx, exists := index[cc.Name]; exists {
				merged[idx] = *cc
			} else {
				index[cc.Name] = len(merged)
				merged = append(merged, *cc)
			}
		}
	}

	return merged
}

// toPtrSlice converts []CategoryConfig to []*CategoryConfig for MergeCategories.
func toPtrSlice(configs []CategoryConfig) []*CategoryConfig {
	ptrs := make([]*CategoryConfig, len(configs))
	for i := range configs {
		ptrs[i] = &configs[i]
	}
	return ptrs
}

// FilterCategories applies enabled/disabled filters by category name.
// A non-empty enabled list is a whitelist; disabled is applied afterwards.
func FilterCategories(categories []CategoryConfig, enabled, disabled []string) []CategoryConfig {
	result := categories

	if len(enabled) > 0 {
		allowed := make(map[string]bool, len(enabled))
		for _, e := range enabled {
			allowed[e] = true
		}
		var filtered []CategoryConfig
		for _, c := range result {
			if allowed[c.Name] {
				filtered = append(filtered, c)
			}
		}
		result = filtered
	}

	if len(disabled) > 0 {
		blocked := make(map[string]bool, len(disabled))
		for _, d := range disabled {
			blocked[d] = true
		}
		var filtered []CategoryConfig
		for _, c := range result {
			if !blocked[c.Name] {
				filtered = append(filtered, c)
			}
		}
		result = filtered
	}

	return result
}

// CompileCategories turns category configs into runtime classifiers.
// Disabled categories are skipped. Substring conditions are lower-cased
// because they are matched against normalized marker content.
func CompileCategories(categories []CategoryConfig) ([]*Classifier, error) {
	var out []*Classifier

	for _, cat := range categories {
		if !cat.isEnabled() {
			continue
		}
		if cat.Name == "" {
			return nil, fmt.Errorf("%w: category without a name", ErrInvalidRule)
		}
		c := &Classifier{
			Category:           cat.Name,
			SkipBeforeMeridiem: cat.SkipBeforeMeridiem,
		}
		for i, rc := range cat.Rules {
			rule, err := compileRule(rc)
			if err != nil {
				return nil, fmt.Errorf("category %q rule %d: %w", cat.Name, i, err)
			}
			c.Rules = append(c.Rules, rule)
		}
		out = append(out, c)
	}

	return out, nil
}

func compileRule(rc RuleConfig) (Rule, error) {
	if rc.Token == "" {
		return Rule{}, fmt.Errorf("%w: missing token", ErrInvalidRule)
	}
	if len(rc.AllOf)+len(rc.AnyOf)+len(rc.Patterns) == 0 {
		return Rule{}, fmt.Errorf("%w: token %q has no conditions", ErrInvalidRule, rc.Token)
	}

	r := Rule{
		Token: rc.Token,
		AllOf: lowerAll(rc.AllOf),
		AnyOf: lowerAll(rc.AnyOf),
	}
	for _, p := range rc.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return Rule{}, fmt.Errorf("compiling pattern %q for token %q: %w", p, rc.Token, err)
		}
		r.Patterns = append(r.Patterns, re)
	}
	return r, nil
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
