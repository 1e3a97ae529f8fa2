package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// sourcesCatalog is the YAML file pointed to by sources_file. It lets
// operators maintain a long source list outside the HCL config:
//
//	sources:
//	  - name: hub-prefixes
//	    url: https://example.com/hub/ips
type sourcesCatalog struct {
	Sources []struct {
		Name string `yaml:"name"`
		URL  string `yaml:"url"`
	} `yaml:"sources"`
}

// mergeSourcesFile appends catalog sources to the inline ones. Inline
// blocks win on name collisions.
func (c *Config) mergeSourcesFile() error {
	if c.SourcesFile == "" {
		return nil
	}

	data, err := os.ReadFile(c.SourcesFile)
	if err != nil {
		return fmt.Errorf("reading sources file: %w", err)
	}

	var catalog sourcesCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("parsing sources file %s: %w", c.SourcesFile, err)
	}

	inline := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		inline[s.Name] = true
	}

	for _, s := range catalog.Sources {
		if inline[s.Name] {
			continue
		}
		c.Sources = append(c.Sources, SourceBlock{Name: s.Name, URL: s.URL})
	}
	return nil
}
