package config

import (
	"os"
	"path/filepath"
	"testing"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bessim/core/control"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `battery:
  capacity_kwh: 10
  max_charge_kw: 5
  max_discharge_kw: 5
simulation:
  strategy: monthly-block-power
  tie_margin: 0
  connection_limit_kw: 17
  month_workers: 2
tariff:
  high_season_months: [11, 12, 1, 2]
  timezone: Europe/Ljubljana
  extra_holidays: ["2024-07-15"]
metrics:
  prometheus_addr: ":9090"
  sinks:
    - type: "prometheus"
    - type: "influx"
      conf:
        url: "http://localhost:8086"
runlog:
  backend: sqlite
mqtt:
  broker: "tcp://localhost:1883"
  topic_prefix: "site/a"
  qos: 1
sentry:
  dsn: ""
output:
  format: csv
  chart: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	p, err := cfg.Battery.Params()
	require.NoError(t, err)
	assert.Equal(t, "custom", p.Name)
	assert.Equal(t, 10.0, p.CapacityKWh)

	assert.Equal(t, control.MonthlyBlockPowerReduction, cfg.Simulation.Kind())
	require.NotNil(t, cfg.Simulation.TieMargin)
	assert.Equal(t, 0.0, *cfg.Simulation.TieMargin)
	assert.Equal(t, 0.05, cfg.Simulation.Tolerance)

	cl, err := cfg.Tariff.Classifier()
	require.NoError(t, err)
	opts := cfg.Simulation.ControlOptions(cl, nil)
	assert.Equal(t, 0.0, opts.Optimize.TieMargin)
	assert.Equal(t, 17.0, opts.Optimize.ConnectionLimitKW)
	assert.Equal(t, 2, opts.MonthWorkers)
	assert.Same(t, cl, opts.Classifier)

	assert.Len(t, cfg.Metrics.Sinks, 2)
	assert.True(t, cfg.Metrics.HasSink("influx"))
	assert.Equal(t, "http://localhost:8086", cfg.Metrics.Sinks[1].Conf["url"])
	assert.Equal(t, "sqlite", cfg.RunLog.Backend)
	assert.Equal(t, "bessim-runs.db", cfg.RunLog.Path)
	assert.Equal(t, "site/a", cfg.MQTT.TopicPrefix)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.True(t, cfg.Output.Chart)
}

func TestLoadJSONWithPreset(t *testing.T) {
	path := writeFile(t, "config.json", `{"battery":{"preset":"tesla_powerwall2"},"simulation":{"strategy":"five_tariff"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	b, err := cfg.Battery.NewState()
	require.NoError(t, err)
	assert.Equal(t, 13.5, b.Capacity())
	assert.Equal(t, 7.0, b.MaxChargePower())
	require.NotNil(t, cfg.Simulation.TieMargin)
	assert.Equal(t, 0.1, *cfg.Simulation.TieMargin)
	assert.Equal(t, "jsonl", cfg.RunLog.Backend)
	assert.Equal(t, "bessim", cfg.MQTT.TopicPrefix)
}

func TestEnvOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", "simulation:\n  strategy: production_saving\n")
	t.Setenv("BESSIM_SIMULATION__STRATEGY", "installed_power")
	t.Setenv("BESSIM_RUNLOG__MAX_SIZE_MB", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, control.InstalledPowerLimit, cfg.Simulation.Kind())
	assert.Equal(t, 5, cfg.RunLog.MaxSizeMB)
	mc := cfg.RunLog.ModuleConfig()
	assert.Equal(t, "jsonl", mc.Type)
	assert.Equal(t, 5, mc.Conf["max_size_mb"])
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPreset, cfg.Battery.Preset)
	assert.Equal(t, control.ProductionSaving, cfg.Simulation.Kind())
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, Default().Simulation.BatchWorkers, cfg.Simulation.BatchWorkers)
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"strategy":  "simulation:\n  strategy: peak_shaving\n",
		"battery":   "battery:\n  capacity_kwh: -1\n  max_charge_kw: 5\n  max_discharge_kw: 5\n",
		"months":    "tariff:\n  high_season_months: [13]\n",
		"timezone":  "tariff:\n  timezone: Mars/Olympus\n",
		"holiday":   "tariff:\n  extra_holidays: [\"15.07.2024\"]\n",
		"backend":   "runlog:\n  backend: postgres\n",
		"format":    "output:\n  format: xlsx\n",
		"sink":      "metrics:\n  sinks:\n    - conf: {}\n",
		"headroom":  "simulation:\n  headroom_fraction: 1.5\n",
		"tiemargin": "simulation:\n  tie_margin: -0.1\n",
		"sentry":    "sentry:\n  sample_rate: 2\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", data))
			assert.Error(t, err)
		})
	}

	_, err := Load(writeFile(t, "config.toml", ""))
	assert.Error(t, err)
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestUnknownPreset(t *testing.T) {
	c := BatteryConfig{Preset: "no_such_battery"}
	require.NoError(t, c.Validate())
	_, err := c.Params()
	assert.Error(t, err)
}
