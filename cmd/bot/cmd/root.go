// Package cmd implements the bot CLI commands.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"PriceSentinel/internal/config"
	"PriceSentinel/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "bot",
	Short: "Watch retailer prices and alert on Telegram",
	Long: "bot checks a catalog of products across several retailers on a schedule,\n" +
		"remembers the last known price per retailer and sends a Telegram alert\n" +
		"when a price moves or reaches the configured floor.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "configs/config.yaml", "config file path (env CONFIG_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "override logging.format (text, json)")

	cobra.CheckErr(viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")))
	cobra.CheckErr(viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level")))
	cobra.CheckErr(viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format")))
	cobra.CheckErr(viper.BindEnv("config", "CONFIG_PATH"))

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file selected by flag or environment and
// builds the logger, honoring the log flags over the file.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, nil, err
	}
	if v := viper.GetString("log_level"); v != "" {
		cfg.Logging.Level = v
	}
	if v := viper.GetString("log_format"); v != "" {
		cfg.Logging.Format = v
	}
	return cfg, logger.New(cfg.Logging.Level, cfg.Logging.Format), nil
}
