package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"beacon-nav/beacon_nav"
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run the mission against a simulated robot and camera",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadApp()
		if err != nil {
			return err
		}
		defer func() {
			_ = logger.Sync()
		}()

		res, err := beacon_nav.RunSim(cfg, logger)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "result:   %s\n", res.State)
		fmt.Fprintf(out, "elapsed:  %d ms\n", res.ElapsedMs)
		fmt.Fprintf(out, "pose:     x=%+.3f y=%+.3f heading=%.3f rad\n", res.X, res.Y, res.Heading)
		if res.Decided {
			fmt.Fprintf(out, "press:    %s\n", res.Press)
		}
		return err
	},
}

func init() {
	simCmd.Flags().Float64("target-x", 0, "override sim.target_x (metres, right of start)")
	simCmd.Flags().Float64("target-y", 0, "override sim.target_y (metres, ahead of start)")
	_ = viper.BindPFlag("sim.target_x", simCmd.Flags().Lookup("target-x"))
	_ = viper.BindPFlag("sim.target_y", simCmd.Flags().Lookup("target-y"))

	rootCmd.AddCommand(simCmd)
}
