package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy is a YAML masking policy: the category set masked under the
// CUSTOM level plus a dictionary of known surface forms for the pattern
// detector.
//
//	custom_categories:
//	  - Person
//	  - Date
//	dictionary:
//	  "Mercy General Hospital": Organization
type Policy struct {
	// CustomCategories is the category set masked under CUSTOM level
	CustomCategories []string `yaml:"custom_categories"`

	// Dictionary maps known surface forms to their categories
	Dictionary map[string]string `yaml:"dictionary"`
}

// LoadPolicy reads and parses a masking policy file
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}
	return ParsePolicy(data)
}

// ParsePolicy parses masking policy YAML
func ParsePolicy(data []byte) (*Policy, error) {
	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy YAML: %w", err)
	}

	for term := range policy.Dictionary {
		if term == "" {
			return nil, fmt.Errorf("policy dictionary contains an empty term")
		}
	}

	return &policy, nil
}
