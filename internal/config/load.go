package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/hashicorp/hcl/v2/hclwrite"

	"github.com/nancarrowm/rangesync/internal/brand"
)

// Load reads, decodes and validates an HCL config file. Token files
// and the optional YAML source catalog are resolved as part of
// loading, so the returned Config is ready to use.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadBytes(path, data)
}

// LoadBytes decodes and validates config from raw HCL.
func LoadBytes(filename string, data []byte) (*Config, error) {
	// Parse with hclwrite first for better syntax diagnostics.
	if _, diags := hclwrite.ParseConfig(data, filename, hcl.Pos{Line: 1, Column: 1}); diags.HasErrors() {
		return nil, fmt.Errorf("parsing config: %s", diags.Error())
	}

	var cfg Config
	if err := hclsimple.Decode(filename, data, nil, &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.resolveToken(); err != nil {
		return nil, err
	}
	if err := cfg.mergeSourcesFile(); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveToken loads the API token from token_file when the token is
// not set inline.
func (c *Config) resolveToken() error {
	if c.PolicyStore.Token != "" || c.PolicyStore.TokenFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.PolicyStore.TokenFile)
	if err != nil {
		return fmt.Errorf("reading token file: %w", err)
	}
	c.PolicyStore.Token = strings.TrimSpace(string(data))
	return nil
}

// applyEnvOverrides lets the environment override secrets so tokens
// can stay out of config files entirely.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(brand.ConfigEnvPrefix + "_TOKEN"); v != "" {
		c.PolicyStore.Token = v
	}
	if v := os.Getenv(brand.ConfigEnvPrefix + "_ENDPOINT"); v != "" {
		c.PolicyStore.Endpoint = v
	}
}
