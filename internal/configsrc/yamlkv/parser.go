// Package yamlkv implements a container.Parser over YAML documents,
// shared by both configsrc adapters so the master instance-name ->
// type-name map and every instance's own configuration use the same
// text format regardless of where the text came from.
package yamlkv

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Parser decodes a YAML mapping of string keys to scalar values into the
// flat map[string]string container.Parser expects. Non-scalar values are
// rejected rather than silently stringified.
type Parser struct{}

// Parse implements container.Parser.
func (Parser) Parse(text string) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("yamlkv: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch vv := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = vv
		case map[string]any, []any:
			return nil, fmt.Errorf("yamlkv: key %q: non-scalar value", k)
		case fmt.Stringer:
			out[k] = vv.String()
		default:
			out[k] = fmt.Sprint(vv)
		}
	}
	return out, nil
}

// Encode renders a flat map back to a YAML document, for Saver-backed
// adapters.
func Encode(m map[string]string) (string, error) {
	b, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("yamlkv: %w", err)
	}
	return string(b), nil
}
