package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bessim/core/runlog"
	_ "github.com/kilianp07/bessim/infra/runlog"
)

var (
	runsStrategy string
	runsSince    time.Duration
	runsFailed   bool
	runsLimit    int
	runsJSON     bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Query the run log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := commandContext()
		defer stop()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.RunLog.Disabled {
			return fmt.Errorf("run log is disabled")
		}
		store, err := runlog.NewStore(cfg.RunLog.ModuleConfig())
		if err != nil {
			return err
		}
		defer store.Close()

		q := runlog.Query{Strategy: runsStrategy, FailedOnly: runsFailed, Limit: runsLimit}
		if runsSince > 0 {
			q.Start = time.Now().Add(-runsSince)
		}
		recs, err := store.Query(ctx, q)
		if err != nil {
			return err
		}

		if runsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, r := range recs {
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tRUN\tSTRATEGY\tBATTERY\tPEAK AFTER\tCLAMPS\tERROR")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%d\t%s\n", r.Timestamp.Format(time.RFC3339),
				r.RunID, r.Strategy, r.Battery.Name, r.Summary.PeakAfterKW, r.Summary.Clamps, r.Error)
		}
		return tw.Flush()
	},
}

func init() {
	fs := runsCmd.Flags()
	fs.StringVarP(&runsStrategy, "strategy", "s", "", "only runs of this strategy")
	fs.DurationVar(&runsSince, "since", 0, "only runs newer than this (e.g. 24h)")
	fs.BoolVar(&runsFailed, "failed", false, "only failed runs")
	fs.IntVarP(&runsLimit, "limit", "n", 0, "at most this many records")
	fs.BoolVar(&runsJSON, "json", false, "print records as JSON lines")
	rootCmd.AddCommand(runsCmd)
}
