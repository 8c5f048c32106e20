package main

import (
	"fmt"

	"pagelens/internal/config"
	"pagelens/internal/store"

	"github.com/spf13/cobra"
)

var runsLimit int

// runsCmd lists archived analysis runs.
var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List archived runs, or print one run's full report",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum runs to list")
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := store.NewReportStore(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer st.Close()

	if len(args) == 1 {
		rec, err := st.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Println(string(rec.ReportJSON))
		return nil
	}

	recs, err := st.List(runsLimit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No archived runs.")
		return nil
	}
	for _, rec := range recs {
		fmt.Printf("%s  %s  %s  requests=%d classified=%d entities=%d\n",
			rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.ID, rec.URL,
			rec.TotalRequests, rec.ClassifiedURLs, rec.EntityCount)
	}
	return nil
}
