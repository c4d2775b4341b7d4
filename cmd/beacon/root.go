package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"beacon-nav/beacon_nav"
	"beacon-nav/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "beacon",
	Short: "Vision-guided beacon alignment for a differential-drive robot",
	Long: `beacon runs a mission of timed drives and PD alignments to a visually
detected target. Vision observations arrive over UDP and motor commands
leave over UDP; the sim command runs the same mission against a simulated
robot instead.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// configErr holds the error from reading an explicitly requested config file.
var configErr error

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./beacon.yaml or $HOME/.config/beacon/beacon.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	configErr = nil
	beacon_nav.SetDefaults(viper.GetViper())

	cfgFile := viper.GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("beacon")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/beacon")
	}

	beacon_nav.BindEnv(viper.GetViper(), "BEACON")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			configErr = fmt.Errorf("read config: %w", err)
		}
	}
}

// loadApp resolves the effective config and builds the logger from it.
func loadApp() (beacon_nav.AppConfig, *zap.Logger, error) {
	if configErr != nil {
		return beacon_nav.AppConfig{}, nil, configErr
	}
	cfg, err := beacon_nav.LoadConfig(viper.GetViper())
	if err != nil {
		return cfg, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return cfg, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}
