package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bessim/core/runlog"
)

var scenarioCSV = func() string {
	loads := []float64{0, -3, -2, 8, 7, 6, 7, 8, 3, 5, 4, -2, 0, 2, 0, 0, 0}
	var b strings.Builder
	b.WriteString("timestamp,power_kw\n")
	for i, l := range loads {
		fmt.Fprintf(&b, "2024-07-01 %02d:%02d:00,%g\n", (15+15*i)/60, (15+15*i)%60, l)
	}
	return b.String()
}()

// setup writes a config and the scenario profile into a temp dir.
func setup(t *testing.T) (cfg, input string) {
	t.Helper()
	dir := t.TempDir()
	cfg = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(fmt.Sprintf(`battery:
  capacity_kwh: 10
  max_charge_kw: 5
  max_discharge_kw: 5
runlog:
  path: %q
`, filepath.Join(dir, "runs.jsonl"))), 0o644))
	input = filepath.Join(dir, "load.csv")
	require.NoError(t, os.WriteFile(input, []byte(scenarioCSV), 0o644))
	return cfg, input
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath = ""
	simInput, simStrategies, simPresets, simOut, simFormat, simChart = "", nil, nil, "", "", ""
	simBattery, limitBattery, blocksBattery = batteryFlags{}, batteryFlags{}, batteryFlags{}
	limitInput, blocksInput, blocksMonthly = "", "", false
	classifyInput = ""
	plotOut, plotTitle, plotHideEnergy = "", "", false
	runsStrategy, runsSince, runsFailed, runsLimit, runsJSON = "", 0, false, 0, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPresets(t *testing.T) {
	cfg, _ := setup(t)
	out, err := execute(t, "presets", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "tesla_powerwall")
	assert.Contains(t, out, "20kWh_10kW")
}

func TestLimit(t *testing.T) {
	cfg, input := setup(t)
	out, err := execute(t, "limit", "-c", cfg, "-i", input)
	require.NoError(t, err)
	assert.Contains(t, out, "installed power limit: 3.0 kW")
}

func TestBlocks(t *testing.T) {
	cfg, input := setup(t)
	out, err := execute(t, "blocks", "-c", cfg, "-i", input)
	require.NoError(t, err)
	assert.Contains(t, out, "BLOCK 5")
	assert.Contains(t, out, "all")
}

func TestSimulateCSVAndRunLog(t *testing.T) {
	cfg, input := setup(t)
	out, err := execute(t, "simulate", "-c", cfg, "-i", input, "-s", "production_saving", "-f", "csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 18)
	assert.True(t, strings.HasPrefix(lines[0], "timestamp,load_kw"))

	out, err = execute(t, "runs", "-c", cfg, "--json")
	require.NoError(t, err)
	var rec runlog.Record
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &rec))
	assert.Equal(t, "production_saving", rec.Strategy)
	assert.InDelta(t, 0.75, rec.Summary.FinalEnergyKWh, 1e-9)
}

func TestSimulateBatch(t *testing.T) {
	cfg, input := setup(t)
	out, err := execute(t, "simulate", "-c", cfg, "-i", input,
		"-s", "production_saving,installed_power", "--presets", "10kWh_5kW,20kWh_10kW")
	require.NoError(t, err)
	assert.Contains(t, out, "STRATEGY")
	assert.Equal(t, 2, strings.Count(out, "installed_power"))
	assert.Equal(t, 2, strings.Count(out, "20kWh_10kW"))

	out, err = execute(t, "runs", "-c", cfg, "-s", "installed_power")
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(strings.TrimSpace(out), "\n")))
}

func TestSimulateWritesFileAndPlot(t *testing.T) {
	cfg, input := setup(t)
	dir := t.TempDir()
	res := filepath.Join(dir, "result.json")
	chart := filepath.Join(dir, "chart.html")
	_, err := execute(t, "simulate", "-c", cfg, "-i", input, "-s", "installed_power", "-o", res, "--chart", chart)
	require.NoError(t, err)
	assert.FileExists(t, res)
	assert.FileExists(t, chart)

	out, err := execute(t, "plot", res, "--title", "scenario")
	require.NoError(t, err)
	assert.Contains(t, out, "<html")
}

func TestClassify(t *testing.T) {
	cfg, _ := setup(t)
	out, err := execute(t, "classify", "-c", cfg, "2024-07-01T12:00:00Z", "2024-07-06 03:00:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-07-01T12:00:00Z,2\n2024-07-06T03:00:00Z,5\n", out)
}

func TestMissingInput(t *testing.T) {
	cfg, _ := setup(t)
	_, err := execute(t, "limit", "-c", cfg)
	assert.Error(t, err)
	_, err = execute(t, "classify", "-c", cfg)
	assert.Error(t, err)
}
