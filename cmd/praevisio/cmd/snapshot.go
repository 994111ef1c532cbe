package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/praevisio/vigilance/internal/common"
	"github.com/praevisio/vigilance/internal/factory"
	"github.com/praevisio/vigilance/internal/log"
)

var snapshotCmd = &cobra.Command{
	Use:     "snapshot",
	Short:   "Fetch every source once and print the aggregated snapshot",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the snapshot
		return loadConfig(cmd, cmd.ErrOrStderr())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.Logger()

		ctx := common.SetupSignalHandler(cmd.Context(), logger)

		sources, err := factory.CreateSources(conf.Sources, factory.NewHTTPClient(conf.Sources.Timeout), prometheus.NewRegistry(), clockwork.NewRealClock(), logger.WithName("source"))
		if err != nil {
			return err
		}

		snapshot := sources.Aggregator.Snapshot(ctx)

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")

		err = encoder.Encode(snapshot)
		if err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}

		logger.V(1).Info("Snapshot done", "mockDomains", snapshot.MockDomains())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}
