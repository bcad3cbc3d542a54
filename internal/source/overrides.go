package source

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Overrides adjusts catalog entries from a YAML file.
type Overrides struct {
	Sources map[string]Override `yaml:"sources"`
}

// Override holds the per-source settings an operator may tune without
// rebuilding. Zero values leave the built-in setting untouched.
type Override struct {
	DefaultQuery string   `yaml:"default_query"`
	MinDelayMs   int      `yaml:"min_delay_ms"`
	MaxDelayMs   int      `yaml:"max_delay_ms"`
	UserAgents   []string `yaml:"user_agents"`
}

// LoadCatalog returns the built-in catalog with overrides from the YAML
// file at path applied. An empty path returns the catalog unchanged.
func LoadCatalog(path string) (map[string]Source, error) {
	catalog := Catalog()
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read overrides %s", path)
	}
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, eris.Wrap(err, "source: parse overrides")
	}

	for name, ov := range o.Sources {
		s, ok := catalog[name]
		if !ok {
			return nil, eris.Errorf("source: override for unknown source %q", name)
		}
		if ov.DefaultQuery != "" {
			s.DefaultQuery = ov.DefaultQuery
		}
		if ov.MinDelayMs > 0 {
			s.Profile.MinDelay = time.Duration(ov.MinDelayMs) * time.Millisecond
		}
		if ov.MaxDelayMs > 0 {
			s.Profile.MaxDelay = time.Duration(ov.MaxDelayMs) * time.Millisecond
		}
		if len(ov.UserAgents) > 0 {
			s.Profile.UserAgents = ov.UserAgents
		}
		catalog[name] = s
	}
	return catalog, nil
}
