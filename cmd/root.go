package cmd

import (
	"os"

	"github.com/chxlky/trello-citydash/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "citydash",
	Short: "Trello board dashboard grouped by city",
	Long: `citydash reads a Trello board, decides which city every card belongs to and
serves the aggregated dashboard over HTTP.

Configuration is read from config.toml in the working directory (or --config)
and can be overridden with CITYDASH_* environment variables.`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	logLevel string

	cfg    config.Config
	logger *zap.Logger
)

func init() {
	rootCmd.PersistentPreRunE = setup
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to config file (default ./config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	v, err := config.New(cfgFile)
	if err != nil {
		return err
	}
	if err := v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		return err
	}
	if f := cmd.Flags().Lookup("port"); f != nil {
		if err := v.BindPFlag("server.port", f); err != nil {
			return err
		}
	}

	cfg, err = config.Load(v)
	if err != nil {
		return err
	}

	logger, err = newLogger(cfg.Log.Level, cfg.Server.Mode == "release")
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	return nil
}

func Execute() {
	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		os.Exit(1)
	}
}
