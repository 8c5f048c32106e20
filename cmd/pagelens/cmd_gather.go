package main

import (
	"context"
	"fmt"

	"pagelens/internal/config"
	"pagelens/internal/gather"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var gatherOut string

// gatherCmd captures a telemetry bundle for a URL.
var gatherCmd = &cobra.Command{
	Use:   "gather [url]",
	Short: "Capture a DevTools protocol event log for a page",
	Long: `Launches (or attaches to) Chrome, navigates to the given URL, and records
the protocol events analysis needs into a telemetry bundle on disk.`,
	Args: cobra.ExactArgs(1),
	RunE: runGather,
}

func init() {
	gatherCmd.Flags().StringVarP(&gatherOut, "out", "o", "bundle.json", "output bundle path")
}

func runGather(cmd *cobra.Command, args []string) error {
	targetURL := args[0]

	cfg, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	collector := gather.NewCollector(cfg.Gather)
	defer func() { _ = collector.Shutdown() }()

	logger.Info("gathering telemetry", zap.String("url", targetURL))
	bundle, err := collector.Collect(ctx, targetURL)
	if err != nil {
		return fmt.Errorf("collect %s: %w", targetURL, err)
	}

	if err := bundle.WriteFile(gatherOut); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}

	logger.Info("bundle written",
		zap.String("path", gatherOut),
		zap.Int("events", len(bundle.Log)),
		zap.String("finalUrl", bundle.FinalDisplayedURL))
	fmt.Printf("Captured %d events from %s -> %s\n", len(bundle.Log), bundle.FinalDisplayedURL, gatherOut)
	return nil
}
