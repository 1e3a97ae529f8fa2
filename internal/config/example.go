package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// WriteExample generates a starter config at path using hclwrite so
// the output is always syntactically valid HCL.
func WriteExample(path string) error {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	body.SetAttributeValue("schema_version", cty.StringVal("1.0"))
	body.SetAttributeValue("state_path", cty.StringVal("/var/lib/rangesync/state.json"))
	body.SetAttributeValue("history_path", cty.StringVal("/var/lib/rangesync/history.db"))
	body.AppendNewline()

	src := body.AppendNewBlock("source", []string{"hub-prefixes"})
	src.Body().SetAttributeValue("url", cty.StringVal("https://api.example.com/v1/hubPrefixes?format=json"))
	body.AppendNewline()

	store := body.AppendNewBlock("policy_store", nil)
	store.Body().SetAttributeValue("endpoint", cty.StringVal("https://policy.example.com/api/v1"))
	store.Body().SetAttributeValue("token_file", cty.StringVal("/etc/rangesync/token"))
	store.Body().SetAttributeValue("scope", cty.StringVal("site"))
	store.Body().SetAttributeValue("scope_id", cty.StringVal("site-id"))
	body.AppendNewline()

	rule := body.AppendNewBlock("rule", nil)
	rule.Body().SetAttributeValue("prefix", cty.StringVal("Zscaler-AutoManaged"))
	rule.Body().SetAttributeValue("port", cty.NumberIntVal(443))
	rule.Body().SetAttributeValue("protocols", cty.ListVal([]cty.Value{
		cty.StringVal("TCP"), cty.StringVal("UDP"),
	}))
	rule.Body().SetAttributeValue("action", cty.StringVal("allow"))
	rule.Body().SetAttributeValue("direction", cty.StringVal("outbound"))
	body.AppendNewline()

	sync := body.AppendNewBlock("sync", nil)
	sync.Body().SetAttributeValue("interval", cty.StringVal("1h"))
	sync.Body().SetAttributeValue("parallel_fetches", cty.NumberIntVal(4))
	body.AppendNewline()

	retry := body.AppendNewBlock("retry", nil)
	retry.Body().SetAttributeValue("max_attempts", cty.NumberIntVal(3))
	retry.Body().SetAttributeValue("initial_delay", cty.StringVal("1s"))
	retry.Body().SetAttributeValue("max_delay", cty.StringVal("30s"))
	body.AppendNewline()

	metrics := body.AppendNewBlock("metrics", nil)
	metrics.Body().SetAttributeValue("listen", cty.StringVal("127.0.0.1:9464"))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, f.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing example config: %w", err)
	}
	return nil
}
