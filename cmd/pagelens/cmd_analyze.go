package main

import (
	"context"
	"fmt"

	"pagelens/internal/config"
	"pagelens/internal/runner"
	"pagelens/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var analyzeArchive bool

// analyzeCmd runs the audit set over a telemetry bundle.
var analyzeCmd = &cobra.Command{
	Use:   "analyze [bundle]",
	Short: "Analyze a telemetry bundle and print the report",
	Long: `Runs the full audit set over a gathered telemetry bundle: derives network
records, classifies every request URL into organizational entities, resolves
the first party, and prints the assembled report as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeArchive, "archive", false, "archive the report to the run store")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	r := runner.New(nil)
	report, err := r.AnalyzeFile(ctx, args[0])
	if err != nil {
		return err
	}

	out, err := report.JSON()
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	fmt.Println(string(out))

	if analyzeArchive {
		if err := archiveReport(report); err != nil {
			return err
		}
		logger.Info("report archived", zap.String("runId", report.RunID))
	}
	return nil
}

func archiveReport(report *runner.Report) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := store.NewReportStore(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer st.Close()

	reportJSON, err := report.JSON()
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return st.Save(store.Record{
		ID:             report.RunID,
		URL:            report.URL,
		FirstPartyKey:  report.FirstPartyKey,
		TotalRequests:  report.TotalRequests,
		ClassifiedURLs: report.ClassifiedURLs,
		EntityCount:    report.EntityCount,
		ReportJSON:     reportJSON,
	})
}
