package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pagelens/internal/runner"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// watchCmd re-analyzes a bundle whenever it changes on disk.
var watchCmd = &cobra.Command{
	Use:   "watch [bundle]",
	Short: "Re-run analysis whenever the bundle file changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	r := runner.New(nil)

	watcher, err := runner.NewBundleWatcher(r, args[0], func(report *runner.Report, err error) {
		if err != nil {
			logger.Warn("analysis failed", zap.Error(err))
			return
		}
		out, jerr := report.JSON()
		if jerr != nil {
			logger.Warn("render report failed", zap.Error(jerr))
			return
		}
		fmt.Println(string(out))
	})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Start(cmd.Context()); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Stop()

	logger.Info("watching bundle", zap.String("path", args[0]))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-cmd.Context().Done():
	}
	return nil
}
