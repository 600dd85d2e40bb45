package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bessim/core/battery"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the storage presets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if f := cfg.Battery.PresetsFile; f != "" {
			if _, err := battery.LoadPresets(f); err != nil {
				return err
			}
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tCAPACITY (kWh)\tCHARGE (kW)\tDISCHARGE (kW)")
		for _, p := range battery.Presets() {
			fmt.Fprintf(tw, "%s\t%g\t%g\t%g\n", p.Name, p.CapacityKWh, p.MaxChargeKW, p.MaxDischargeKW)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}
