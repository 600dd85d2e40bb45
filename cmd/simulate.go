package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bessim/app"
	"github.com/kilianp07/bessim/config"
	"github.com/kilianp07/bessim/core/battery"
	"github.com/kilianp07/bessim/core/control"
	"github.com/kilianp07/bessim/core/model"
	"github.com/kilianp07/bessim/pkg/export"
)

var (
	simInput      string
	simStrategies []string
	simPresets    []string
	simOut        string
	simFormat     string
	simChart      string
	simBattery    batteryFlags
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run one or more strategies over a load profile",
	Long: `Run a strategy over a load profile and write the per-sample result.
Several --strategy or --presets values run as a concurrent batch and print a
summary table instead.`,
	RunE: runSimulate,
}

func init() {
	fs := simulateCmd.Flags()
	fs.StringVarP(&simInput, "input", "i", "", "load profile (csv, json or yaml)")
	fs.StringSliceVarP(&simStrategies, "strategy", "s", nil, fmt.Sprintf("strategies to run %v", control.Kinds()))
	fs.StringSliceVar(&simPresets, "presets", nil, "run the batch on each of these presets")
	fs.StringVarP(&simOut, "out", "o", "", "result file; the extension picks the format")
	fs.StringVarP(&simFormat, "format", "f", "", "output format when writing to stdout (csv, json, html)")
	fs.StringVar(&simChart, "chart", "", "also write an HTML chart to this file")
	simBattery.register(fs)
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	ctx, stop := commandContext()
	defer stop()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	simBattery.apply(&cfg.Battery)
	s, err := loadSeries(simInput, cfg)
	if err != nil {
		return err
	}
	kinds, err := parseKinds(simStrategies, cfg)
	if err != nil {
		return err
	}
	params, err := batteries(cfg, simPresets)
	if err != nil {
		return err
	}

	return withService(ctx, cfg, func(svc *app.Service) error {
		if len(kinds) == 1 && len(params) == 1 {
			b, err := battery.New(params[0])
			if err != nil {
				return err
			}
			res, err := svc.Run(ctx, s, b, kinds[0])
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), cfg, res)
		}
		var jobs []app.Job
		for _, p := range params {
			for _, k := range kinds {
				jobs = append(jobs, app.Job{Battery: p, Kind: k})
			}
		}
		results, err := svc.RunBatch(ctx, s, jobs)
		if err != nil {
			return err
		}
		return printBatch(cmd.OutOrStdout(), s.DT(), results)
	})
}

func parseKinds(tags []string, cfg *config.Config) ([]control.Kind, error) {
	if len(tags) == 0 {
		return []control.Kind{cfg.Simulation.Kind()}, nil
	}
	out := make([]control.Kind, 0, len(tags))
	for _, t := range tags {
		k, err := control.ParseKind(t)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

func batteries(cfg *config.Config, presets []string) ([]battery.Params, error) {
	if len(presets) == 0 {
		p, err := cfg.Battery.Params()
		if err != nil {
			return nil, err
		}
		return []battery.Params{p}, nil
	}
	out := make([]battery.Params, 0, len(presets))
	for _, name := range presets {
		p, err := battery.LookupPreset(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// emit writes the result where the flags or the output section say.
func emit(w io.Writer, cfg *config.Config, res *model.Result) error {
	out := simOut
	if out == "" && cfg.Output.Dir != "" {
		out = filepath.Join(cfg.Output.Dir, fmt.Sprintf("%s-%s.%s", res.Strategy, res.RunID, cfg.Output.Format))
	}
	if out != "" {
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		if err := export.WriteFile(out, res); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %s\n", out)
	} else {
		format := simFormat
		if format == "" {
			format = cfg.Output.Format
		}
		f, err := export.ParseFormat(format)
		if err != nil {
			return err
		}
		if err := export.Write(w, f, res); err != nil {
			return err
		}
	}
	chart := simChart
	if chart == "" && cfg.Output.Chart && out != "" {
		chart = out[:len(out)-len(filepath.Ext(out))] + ".html"
	}
	if chart != "" && chart != out {
		if err := writeChart(chart, res); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %s\n", chart)
	}
	return nil
}

func writeChart(path string, res *model.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteChartHTML(f, res, export.ChartOptions{}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printBatch(w io.Writer, dt float64, results []app.JobResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BATTERY\tSTRATEGY\tPEAK BEFORE\tPEAK AFTER\tDISCHARGED\tCHARGED\tCLAMPS\tERROR")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\t%s\t\t\t\t\t\t%v\n", r.Job.Battery.Name, r.Job.Kind, r.Err)
			continue
		}
		sum := r.Result.Summary(dt)
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t\n", r.Job.Battery.Name, r.Job.Kind,
			sum.PeakBeforeKW, sum.PeakAfterKW, sum.DischargedKWh, sum.ChargedKWh, sum.Clamps)
	}
	return tw.Flush()
}
