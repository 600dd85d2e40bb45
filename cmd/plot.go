package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bessim/core/model"
	"github.com/kilianp07/bessim/pkg/export"
)

var (
	plotOut        string
	plotTitle      string
	plotHideEnergy bool
)

var plotCmd = &cobra.Command{
	Use:   "plot <result.json>",
	Short: "Render a saved JSON result as an HTML chart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var res model.Result
		if err := json.Unmarshal(data, &res); err != nil {
			return fmt.Errorf("decode %s: %w", args[0], err)
		}
		if res.Len() == 0 {
			return fmt.Errorf("%s holds no samples", args[0])
		}
		w := cmd.OutOrStdout()
		var f *os.File
		if plotOut != "" {
			if f, err = os.Create(plotOut); err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		title := plotTitle
		if title == "" {
			title = res.Strategy
		}
		if err := export.WriteChartHTML(w, &res, export.ChartOptions{Title: title, HideEnergy: plotHideEnergy}); err != nil {
			return err
		}
		if f != nil {
			return f.Close()
		}
		return nil
	},
}

func init() {
	plotCmd.Flags().StringVarP(&plotOut, "out", "o", "", "HTML file (default stdout)")
	plotCmd.Flags().StringVar(&plotTitle, "title", "", "chart title (default the strategy)")
	plotCmd.Flags().BoolVar(&plotHideEnergy, "hide-energy", false, "omit the stored energy series")
	rootCmd.AddCommand(plotCmd)
}
