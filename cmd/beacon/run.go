package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"beacon-nav/beacon_nav"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the mission against live UDP vision input",
	Long: `run listens for vision observations on live.udp_addr, ticks the task
supervisor at hz, and sends "left,right,STATE" motor packets to
output.udp_addr. SIGINT or SIGTERM cancels the running task and zeroes the
motors. Edits to the config file replace mission steps that have not
started yet.`,
	RunE: runLive,
}

func init() {
	runCmd.Flags().String("listen", "", "override live.udp_addr (host:port)")
	runCmd.Flags().String("output", "", "override output.udp_addr (host:port)")
	runCmd.Flags().Bool("viz", false, "serve expvar telemetry on viz.addr")
	_ = viper.BindPFlag("live.udp_addr", runCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("output.udp_addr", runCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("viz.enabled", runCmd.Flags().Lookup("viz"))

	rootCmd.AddCommand(runCmd)
}

func runLive(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadApp()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reloads := make(chan beacon_nav.Mission, 1)
	watchMission(logger, reloads)

	state, err := beacon_nav.RunLive(ctx, cfg, logger, reloads)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "mission result: %s\n", state)
	return nil
}

// watchMission forwards the mission from each valid config rewrite. Only
// the newest pending mission is kept.
func watchMission(logger *zap.Logger, reloads chan beacon_nav.Mission) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := beacon_nav.LoadConfig(viper.GetViper())
		if err != nil {
			logger.Warn("config change rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		select {
		case <-reloads:
		default:
		}
		reloads <- cfg.Mission
		logger.Info("config change queued", zap.String("file", e.Name))
	})
	viper.WatchConfig()
}
