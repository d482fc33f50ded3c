package main

import (
	"fmt"
	"os"

	"github.com/raykavin/signalsense"
	"github.com/raykavin/signalsense/internal/config"
	"github.com/raykavin/signalsense/pkg/logger"
	"github.com/raykavin/signalsense/pkg/upstream"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Command line state shared by every subcommand
var (
	configPath string
	settings   = config.New()
	cfg        *config.Config
	log        logger.Logger = signalsense.DefaultLog
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "signalsense",
		Short:             "Stock signal dashboard and command line client",
		Version:           "1.0.0",
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Configuration file (yaml, json or toml)")
	flags.String("api", "", "Prediction service base URL (e.g. http://localhost:8000)")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	bindFlag(settings, "api.base_url", rootCmd, "api")
	bindFlag(settings, "log.level", rootCmd, "log-level")

	rootCmd.AddCommand(buildServeCmd(), buildPredictCmd(), buildHistoryCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bindFlag lets a flag override key only when the user set it.
func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(name)); err != nil {
		panic(err)
	}
}

func loadConfig(*cobra.Command, []string) error {
	var err error
	cfg, err = config.Load(settings, configPath)
	if err != nil {
		return err
	}

	log, err = signalsense.NewLogger(signalsense.LogOptions{
		Level:      cfg.Log.Level,
		TimeLayout: cfg.Log.TimeFormat,
		Colored:    cfg.Log.Colored,
		JSON:       cfg.Log.JSON,
	})
	return err
}

func newClient(options ...upstream.Option) *upstream.Client {
	return upstream.NewClient(cfg.API.BaseURL, log,
		append([]upstream.Option{upstream.WithTimeout(cfg.API.Timeout)}, options...)...)
}
