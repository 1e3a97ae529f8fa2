package cmd

import (
	"fmt"
	"os"

	"github.com/nancarrowm/rangesync/internal/config"
)

// RunInit writes a starter configuration file.
func RunInit(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use -force to overwrite)", path)
		}
	}

	if err := config.WriteExample(path); err != nil {
		return err
	}
	fmt.Printf("Wrote example configuration to %s\n", path)
	fmt.Println("Edit the policy_store and source blocks, then run: check -config " + path)
	return nil
}
