package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/common/version"
	"github.com/spf13/cobra"

	"github.com/praevisio/vigilance/internal/config"
	"github.com/praevisio/vigilance/internal/log"
)

var (
	cfgFile string
	conf    *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "praevisio",
	Short:        "Resilient data layer and eternal vigilance channel",
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional, environment variables take precedence)")
}

// loadConfig parses the configuration and initializes the logger writing to logOutput.
func loadConfig(cmd *cobra.Command, logOutput io.Writer) error {
	var err error

	conf, err = config.Parse(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", cfgFile, err)
	}

	// Init logger
	err = log.Init(conf.Logs, logOutput)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	logger := log.Logger()

	// Dump generic information
	logger.Info("Starting praevisio",
		"command", cmd.Name(),
		"version", version.Info(),
		"buildContext", version.BuildContext(),
	)
	logger.V(1).Info("Using config", "config", fmt.Sprintf("%+v", *conf))

	return nil
}
