package cmd

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bessim/pkg/series"
)

var classifyInput string

var classifyCmd = &cobra.Command{
	Use:   "classify [timestamp...]",
	Short: "Label timestamps or a load profile with their tariff block",
	Long: `Print the tariff block (1..5) of each timestamp argument, or with
--input label every sample of a load profile and write it as CSV.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if classifyInput == "" && len(args) == 0 {
			return fmt.Errorf("pass timestamps or --input")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cl, err := cfg.Tariff.Classifier()
		if err != nil {
			return err
		}
		loc, err := location(cfg)
		if err != nil {
			return err
		}

		w := csv.NewWriter(cmd.OutOrStdout())
		if classifyInput == "" {
			for _, a := range args {
				t, err := series.ParseTime(a, loc)
				if err != nil {
					return err
				}
				_ = w.Write([]string{t.Format(time.RFC3339), strconv.Itoa(cl.Block(t))})
			}
			w.Flush()
			return w.Error()
		}

		s, err := loadSeries(classifyInput, cfg)
		if err != nil {
			return err
		}
		_ = w.Write([]string{"timestamp", "power_kw", "block"})
		for _, smp := range cl.Label(s).Samples {
			_ = w.Write([]string{
				smp.Time.Format(time.RFC3339),
				strconv.FormatFloat(smp.PowerKW, 'f', -1, 64),
				strconv.Itoa(smp.Block),
			})
		}
		w.Flush()
		return w.Error()
	},
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyInput, "input", "i", "", "load profile to label")
	rootCmd.AddCommand(classifyCmd)
}
