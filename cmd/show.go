package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/nancarrowm/rangesync/internal/clock"
	"github.com/nancarrowm/rangesync/internal/history"
	"github.com/nancarrowm/rangesync/internal/logging"
)

// RunShow prints the persisted state and, when a history database is
// available, the most recent sync runs.
func RunShow(configFile string, historyN int) error {
	cfg, store, err := openStateStore(configFile)
	if err != nil {
		return err
	}

	st, err := store.Load()
	if err != nil {
		return err
	}
	if st == nil {
		fmt.Println("No state yet: no sync pass has been applied.")
	} else {
		fmt.Printf("Last sync: %s (%s ago)\n", st.LastSync.Format(time.RFC3339),
			time.Since(st.LastSync).Round(time.Second))
		fmt.Printf("Ranges: %d total (%d IPv4, %d IPv6)\n",
			st.TotalCount, len(st.IPv4Ranges), len(st.IPv6Ranges))
		fmt.Printf("Synced rules: %d\n", len(st.SyncedRules))
	}

	if historyN <= 0 {
		return nil
	}

	hist, err := history.Open(historyPath(cfg), &clock.RealClock{}, logging.Default())
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer hist.Close()

	runs, err := hist.RecentRuns(context.Background(), historyN)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("\nNo recorded runs.")
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "STARTED\tOUTCOME\tRANGES\tCREATED\tDELETED\tFAILED\tFLAGS")
	for _, run := range runs {
		flags := ""
		if run.DryRun {
			flags += "dry-run "
		}
		if run.Degraded {
			flags += "degraded"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			run.StartedAt.Format(time.RFC3339), run.Outcome, run.RangesTotal,
			run.Created, run.Deleted, run.Failed+run.DeleteFailed, flags)
	}
	return nil
}
