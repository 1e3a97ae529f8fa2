package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nancarrowm/rangesync/internal/brand"
)

func TestInitThenCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rangesync.hcl")

	if err := RunInit(path, false); err != nil {
		t.Fatalf("RunInit: %v", err)
	}

	// init refuses to clobber without force
	if err := RunInit(path, false); err == nil {
		t.Error("expected error re-initializing existing config")
	}
	if err := RunInit(path, true); err != nil {
		t.Errorf("RunInit with force: %v", err)
	}

	// The generated token_file placeholder does not exist, so supply
	// the token through the environment the way deployments do.
	os.Setenv(brand.ConfigEnvPrefix+"_TOKEN", "env-token")
	defer os.Unsetenv(brand.ConfigEnvPrefix + "_TOKEN")

	// Drop the dangling token_file reference.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	cleaned := strings.Replace(string(data), `token_file = "/etc/rangesync/token"`, "", 1)
	if err := os.WriteFile(path, []byte(cleaned), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RunCheck(path, true); err != nil {
		t.Errorf("RunCheck on generated config: %v", err)
	}
}

func TestCheckMissingFile(t *testing.T) {
	if err := RunCheck(filepath.Join(t.TempDir(), "absent.hcl"), false); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestCheckEmptyPath(t *testing.T) {
	if err := RunCheck("", false); err == nil {
		t.Error("expected usage error for empty path")
	}
}
