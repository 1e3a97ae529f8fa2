package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	syncengine "github.com/nancarrowm/rangesync/internal/sync"
)

// RunSync executes a single sync pass and exits.
func RunSync(configFile string, dryRun, force bool) error {
	eng, err := buildEngine(configFile)
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	summary, err := eng.service.Run(ctx, syncengine.RunOptions{DryRun: dryRun, Force: force})
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Printf("dry run: %s\n", summaryLine(summary))
	} else {
		fmt.Printf("sync complete: %s\n", summaryLine(summary))
	}
	return nil
}
