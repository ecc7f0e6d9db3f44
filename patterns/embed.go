// Package patterns provides the embedded default redaction rule tables.
// The YAML lists categories in the order the resolver runs them.
package patterns

import _ "embed"

//go:embed redaction.yaml
var redactionYAML []byte

// RedactionYAML returns the embedded default redaction categories.
func RedactionYAML() []byte { return redactionYAML }
