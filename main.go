package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/nancarrowm/rangesync/cmd"
	"github.com/nancarrowm/rangesync/internal/brand"
	"github.com/nancarrowm/rangesync/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	defaultConfig := brand.DefaultConfigPath()

	switch os.Args[1] {
	case "sync":
		syncFlags := flag.NewFlagSet("sync", flag.ExitOnError)
		configFile := syncFlags.String("config", defaultConfig, "Configuration file")
		syncFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")

		dryRun := syncFlags.Bool("dry-run", false, "Log intended changes without applying them")
		syncFlags.BoolVar(dryRun, "n", false, "Dry run (short)")

		force := syncFlags.Bool("force", false, "Ignore persisted state and re-apply everything")
		syncFlags.BoolVar(force, "f", false, "Force (short)")

		verbose := syncFlags.Bool("v", false, "Verbose logging")
		syncFlags.Parse(os.Args[2:])

		applyVerbosity(*verbose)
		if err := cmd.RunSync(*configFile, *dryRun, *force); err != nil {
			fmt.Fprintf(os.Stderr, "Sync failed: %v\n", err)
			os.Exit(1)
		}

	case "start":
		startFlags := flag.NewFlagSet("start", flag.ExitOnError)
		configFile := startFlags.String("config", defaultConfig, "Configuration file")
		startFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")
		verbose := startFlags.Bool("v", false, "Verbose logging")
		startFlags.Parse(os.Args[2:])

		applyVerbosity(*verbose)
		if err := cmd.RunStart(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Start failed: %v\n", err)
			os.Exit(1)
		}

	case "diff":
		diffFlags := flag.NewFlagSet("diff", flag.ExitOnError)
		configFile := diffFlags.String("config", defaultConfig, "Configuration file")
		diffFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")
		diffFlags.Parse(os.Args[2:])

		if err := cmd.RunDiff(*configFile); err != nil {
			if !errors.Is(err, cmd.ErrChangesPending) {
				fmt.Fprintf(os.Stderr, "Diff failed: %v\n", err)
			}
			os.Exit(1)
		}

	case "check":
		checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
		configFile := checkFlags.String("config", defaultConfig, "Configuration file")
		checkFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")
		verbose := checkFlags.Bool("v", false, "Print the full configuration summary")
		checkFlags.Parse(os.Args[2:])

		if err := cmd.RunCheck(*configFile, *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
			os.Exit(1)
		}

	case "show":
		showFlags := flag.NewFlagSet("show", flag.ExitOnError)
		configFile := showFlags.String("config", defaultConfig, "Configuration file")
		showFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")
		historyN := showFlags.Int("history", 10, "Recent runs to show (0 disables)")
		showFlags.Parse(os.Args[2:])

		if err := cmd.RunShow(*configFile, *historyN); err != nil {
			fmt.Fprintf(os.Stderr, "Show failed: %v\n", err)
			os.Exit(1)
		}

	case "init":
		initFlags := flag.NewFlagSet("init", flag.ExitOnError)
		path := initFlags.String("config", defaultConfig, "Where to write the config")
		force := initFlags.Bool("force", false, "Overwrite an existing file")
		initFlags.Parse(os.Args[2:])

		if err := cmd.RunInit(*path, *force); err != nil {
			fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
			os.Exit(1)
		}

	case "version":
		fmt.Printf("%s %s (built %s)\n", brand.Name, brand.Version, brand.BuildTime)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func applyVerbosity(verbose bool) {
	if verbose {
		logging.Default().SetLevel(logging.LevelDebug)
	}
}

func printUsage() {
	fmt.Printf(`%s - %s

Usage: %s <command> [options]

Commands:
  sync     Run one sync pass and exit
  start    Run the periodic sync service in the foreground
  diff     Show pending changes without applying them
  check    Validate the configuration file
  show     Print persisted state and recent run history
  init     Write a starter configuration file
  version  Print version information

Common options:
  -config, -c   Configuration file (default %s)

Run '%s <command> -h' for command-specific options.
`, brand.Name, brand.Description, brand.BinaryName, brand.DefaultConfigPath(), brand.BinaryName)
}
