package certify

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed suites/core.yaml
var coreSuiteYAML []byte

var builtinSuites = map[string][]byte{
	"core": coreSuiteYAML,
}

// LoadSuite loads a built-in certification suite by name.
func LoadSuite(name string) (*Suite, error) {
	data, ok := builtinSuites[name]
	if !ok {
		return nil, fmt.Errorf("unknown certification suite: %q", name)
	}

	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse suite %q: %w", name, err)
	}
	return &s, nil
}

// LoadSuiteFile loads a suite from a YAML file on disk.
func LoadSuiteFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse suite %q: %w", path, err)
	}
	return &s, nil
}

// ListSuites returns sorted names of all built-in certification suites.
func ListSuites() []string {
	names := make([]string, 0, len(builtinSuites))
	for name := range builtinSuites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
