package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/nancarrowm/rangesync/internal/brand"
	"github.com/nancarrowm/rangesync/internal/config"
)

// RunCheck validates the configuration file syntax and semantics.
func RunCheck(configFile string, verbose bool) error {
	if len(configFile) == 0 {
		return fmt.Errorf("usage: %s check [-v] -config <config-file>", brand.BinaryName)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Println("Configuration valid!")
	fmt.Printf("Sources: %d\n", len(cfg.Sources))
	fmt.Printf("Policy store: %s (scope %s)\n", cfg.PolicyStore.Endpoint, cfg.PolicyStore.Scope)
	fmt.Printf("Rule prefix: %s\n", cfg.Rule.Prefix)

	if verbose {
		fmt.Println()
		printSummary(cfg)
	}
	return nil
}

func printSummary(cfg *config.Config) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "SOURCE\tURL")
	for _, src := range cfg.Sources {
		fmt.Fprintf(w, "%s\t%s\n", src.Name, src.URL)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "port\t%d\n", cfg.Rule.Port)
	fmt.Fprintf(w, "protocols\t%v\n", cfg.Rule.ProtocolList())
	fmt.Fprintf(w, "action\t%s\n", cfg.Rule.ActionOrDefault())
	fmt.Fprintf(w, "direction\t%s\n", cfg.Rule.DirectionOrDefault())
	fmt.Fprintf(w, "interval\t%s\n", cfg.Interval())
	fmt.Fprintf(w, "parallel fetches\t%d\n", cfg.ParallelFetches())
	fmt.Fprintf(w, "state path\t%s\n", statePath(cfg))
	fmt.Fprintf(w, "history path\t%s\n", historyPath(cfg))
}
