package classifier

import (
	"fmt"

	"github.com/dativo-io/notescrub/patterns"
)

// DefaultCategories returns the built-in categories parsed from the embedded
// redaction.yaml. This is the first layer in the merge chain.
func DefaultCategories() ([]CategoryConfig, error) {
	rf, err := ParseRuleFile(patterns.RedactionYAML())
	if err != nil {
		return nil, fmt.Errorf("parsing embedded redaction rules: %w", err)
	}
	return rf.Categories, nil
}

// Defaults is the compiled default ruleset, built at init time from the
// embedded YAML.
var Defaults *Ruleset

func init() {
	cats, err := DefaultCategories()
	if err != nil {
		panic(fmt.Sprintf("loading embedded redaction rules: %v", err))
	}
	compiled, err := CompileCategories(cats)
	if err != nil {
		panic(fmt.Sprintf("compiling embedded redaction rules: %v", err))
	}
	Defaults = &Ruleset{classifiers: compiled}
}
