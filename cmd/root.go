// Package cmd implements the bessim command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kilianp07/bessim/app"
	"github.com/kilianp07/bessim/config"
	"github.com/kilianp07/bessim/core/model"
	"github.com/kilianp07/bessim/infra/logger"
	"github.com/kilianp07/bessim/pkg/series"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "bessim",
	Short: "Battery energy storage control and optimization engine",
	Long: `bessim simulates a battery against a load profile under a control
strategy and finds the tightest grid power limits the battery can hold.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// withService builds the service, runs fn and closes the service.
func withService(ctx context.Context, cfg *config.Config, fn func(*app.Service) error) error {
	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return fn(svc)
}

// batteryFlags override the battery section of the configuration.
type batteryFlags struct {
	preset    string
	capacity  float64
	charge    float64
	discharge float64
}

func (f *batteryFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.preset, "preset", "", "storage preset name (see 'bessim presets')")
	fs.Float64Var(&f.capacity, "capacity", 0, "battery capacity in kWh")
	fs.Float64Var(&f.charge, "max-charge", 0, "maximum charge power in kW")
	fs.Float64Var(&f.discharge, "max-discharge", 0, "maximum discharge power in kW")
}

func (f *batteryFlags) apply(c *config.BatteryConfig) {
	if f.preset != "" {
		*c = config.BatteryConfig{Preset: f.preset, InitialSoC: c.InitialSoC, PresetsFile: c.PresetsFile}
	}
	if f.capacity > 0 || f.charge > 0 || f.discharge > 0 {
		c.CapacityKWh, c.MaxChargeKW, c.MaxDischargeKW = f.capacity, f.charge, f.discharge
	}
}

func loadSeries(path string, cfg *config.Config) (*model.Series, error) {
	if path == "" {
		return nil, fmt.Errorf("--input is required")
	}
	loc, err := location(cfg)
	if err != nil {
		return nil, err
	}
	return series.LoadFile(path, series.Options{Location: loc})
}

// location returns the tariff time zone, or nil for UTC.
func location(cfg *config.Config) (*time.Location, error) {
	if cfg.Tariff.Timezone == "" {
		return nil, nil
	}
	return time.LoadLocation(cfg.Tariff.Timezone)
}
