package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bessim/app"
	"github.com/kilianp07/bessim/core/control"
	"github.com/kilianp07/bessim/core/model"
)

var (
	limitInput   string
	limitBattery batteryFlags

	blocksInput   string
	blocksMonthly bool
	blocksBattery batteryFlags
)

var limitCmd = &cobra.Command{
	Use:   "limit",
	Short: "Find the lowest constant grid power limit the battery can hold",
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := solveLimits(limitInput, &limitBattery, control.InstalledPowerLimit)
		if err != nil {
			return err
		}
		if len(res.Limits) == 0 {
			return fmt.Errorf("no limit in result")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "installed power limit: %.1f kW\n", res.Limits[0])
		return nil
	},
}

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Find the lowest grid power limit per tariff block",
	Long: `Find the lowest grid power limit of each of the five tariff blocks.
With --monthly the limits are solved separately for every calendar month.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		kind := control.BlockPowerReduction
		if blocksMonthly {
			kind = control.MonthlyBlockPowerReduction
		}
		res, err := solveLimits(blocksInput, &blocksBattery, kind)
		if err != nil {
			return err
		}
		periods := res.Periods
		if len(periods) == 0 {
			periods = []model.Period{{Month: "all", Limits: res.BlockLimits}}
		}
		return printBlockLimits(cmd.OutOrStdout(), periods)
	},
}

func init() {
	limitCmd.Flags().StringVarP(&limitInput, "input", "i", "", "load profile (csv, json or yaml)")
	limitBattery.register(limitCmd.Flags())

	blocksCmd.Flags().StringVarP(&blocksInput, "input", "i", "", "load profile (csv, json or yaml)")
	blocksCmd.Flags().BoolVar(&blocksMonthly, "monthly", false, "solve every calendar month separately")
	blocksBattery.register(blocksCmd.Flags())

	rootCmd.AddCommand(limitCmd, blocksCmd)
}

func solveLimits(input string, bf *batteryFlags, kind control.Kind) (*model.Result, error) {
	ctx, stop := commandContext()
	defer stop()
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	bf.apply(&cfg.Battery)
	s, err := loadSeries(input, cfg)
	if err != nil {
		return nil, err
	}
	b, err := cfg.Battery.NewState()
	if err != nil {
		return nil, err
	}
	var res *model.Result
	err = withService(ctx, cfg, func(svc *app.Service) error {
		res, err = svc.Run(ctx, s, b, kind)
		return err
	})
	return res, err
}

func printBlockLimits(w io.Writer, periods []model.Period) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PERIOD\tBLOCK 1\tBLOCK 2\tBLOCK 3\tBLOCK 4\tBLOCK 5")
	for _, p := range periods {
		fmt.Fprint(tw, p.Month)
		for _, l := range p.Limits {
			fmt.Fprintf(tw, "\t%.1f", l)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
