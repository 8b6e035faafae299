package filter

import (
	"gopkg.in/yaml.v3"
)

// Parse decodes a RuleSet from YAML and validates it.
// The returned RuleSet is ready to be swapped into a source.Store.
func Parse(data []byte, path string) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, &ParseError{Path: path, Cause: err}
	}

	if err := rs.Validate(); err != nil {
		return nil, err
	}

	return &rs, nil
}
