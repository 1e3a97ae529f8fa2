package config

import (
	"fmt"

	"github.com/nancarrowm/rangesync/internal/policystore"
	"github.com/nancarrowm/rangesync/internal/validation"
)

// Validate checks the configuration for consistency. Called after all
// merging (token files, source catalogs, env overrides) is done.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("config: at least one source is required")
	}

	seen := make(map[string]bool, len(c.Sources))
	for _, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("config: source with empty name")
		}
		if src.URL == "" {
			return fmt.Errorf("config: source %q has no url", src.Name)
		}
		if seen[src.Name] {
			return fmt.Errorf("config: duplicate source name %q", src.Name)
		}
		seen[src.Name] = true
	}

	if c.PolicyStore.Endpoint == "" {
		return fmt.Errorf("config: policy_store endpoint is required")
	}
	if c.PolicyStore.Token == "" {
		return fmt.Errorf("config: policy_store token is required (token, token_file or environment)")
	}

	scope, err := policystore.ParseScope(c.PolicyStore.Scope)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if scope.RequiresID() && c.PolicyStore.ScopeID == "" {
		return fmt.Errorf("config: scope %q requires scope_id", scope)
	}

	if c.Rule.Prefix == "" {
		return fmt.Errorf("config: rule prefix is required")
	}
	if err := validation.ValidatePortNumber(c.Rule.Port); err != nil {
		return fmt.Errorf("config: rule port: %w", err)
	}
	for _, proto := range c.Rule.ProtocolList() {
		if err := validation.ValidateProtocol(proto); err != nil {
			return fmt.Errorf("config: rule protocols: %w", err)
		}
	}

	return nil
}
