package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ruleFileSchema is the JSON Schema for redaction rule files.
const ruleFileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "notescrub redaction rules",
  "type": "object",
  "required": ["categories"],
  "additionalProperties": false,
  "properties": {
    "categories": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "rules"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1, "pattern": "^[a-z0-9_-]+$"},
          "enabled": {"type": "boolean"},
          "skip_before_meridiem": {"type": "boolean"},
          "rules": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["token"],
              "additionalProperties": false,
              "anyOf": [
                {"required": ["all_of"]},
                {"required": ["any_of"]},
                {"required": ["patterns"]}
              ],
              "properties": {
                "token": {"type": "string", "minLength": 1},
                "all_of": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
                "any_of": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
                "patterns": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}}
              }
            }
          }
        }
      }
    }
  }
}`

// ValidateRuleFile validates rule YAML against the rule file schema.
// The YAML is converted to JSON first because gojsonschema operates on JSON.
func ValidateRuleFile(yamlBytes []byte) error {
	var raw interface{}
	if err := yaml.Unmarshal(yamlBytes, &raw); err != nil {
		return fmt.Errorf("parsing YAML for schema validation: %w", err)
	}

	jsonBytes, err := json.Marshal(normalizeYAML(raw))
	if err != nil {
		return fmt.Errorf("converting YAML to JSON: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(ruleFileSchema),
		gojsonschema.NewBytesLoader(jsonBytes),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		var msgs []string
		for _, verr := range result.Errors() {
			msgs = append(msgs, "- "+verr.String())
		}
		return fmt.Errorf("%w: schema validation errors:\n%s", ErrInvalidRule, strings.Join(msgs, "\n"))
	}
	return nil
}

// normalizeYAML recursively converts map[interface{}]interface{} to
// map[string]interface{} so that json.Marshal can handle it.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, v := range val {
			out[k] = normalizeYAML(v)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, v := range val {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(v)
		}
		return out
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeYAML(item)
		}
		return val
	default:
		return v
	}
}
