package metrics_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/bessim/core/factory"
	"github.com/kilianp07/bessim/core/metrics"
	"github.com/kilianp07/bessim/core/model"
)

type countingSink struct {
	runs   int
	limits int
	err    error
}

func (c *countingSink) RecordRun(metrics.RunRecord) error { c.runs++; return c.err }

func (c *countingSink) RecordLimits(metrics.LimitRecord) error { c.limits++; return nil }

type runOnlySink struct{ runs int }

func (r *runOnlySink) RecordRun(metrics.RunRecord) error { r.runs++; return nil }

func init() {
	_ = metrics.RegisterMetricsSink("test-nop", func(map[string]any) (metrics.MetricsSink, error) {
		return metrics.NopSink{}, nil
	})
}

func TestNewMetricsSink(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "test-nop"}, {Type: "test-nop"}})
	require.NoError(t, err)
	m, ok := s.(*metrics.MultiSink)
	require.True(t, ok)
	assert.Len(t, m.Sinks, 2)

	_, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}})
	assert.Error(t, err)
	assert.Contains(t, metrics.SinkTypes(), "test-nop")
}

func TestConfigDecode(t *testing.T) {
	var fromYAML metrics.Config
	require.NoError(t, yaml.Unmarshal([]byte("sinks:\n  - type: test-nop\n  - type: test-nop\n"), &fromYAML))
	s, err := metrics.NewMetricsSink(fromYAML.Sinks)
	require.NoError(t, err)
	assert.IsType(t, &metrics.MultiSink{}, s)

	var fromJSON metrics.Config
	require.NoError(t, json.Unmarshal([]byte(`{"sinks":[{"type":"missing"}],"prometheus_addr":":9090"}`), &fromJSON))
	assert.Equal(t, ":9090", fromJSON.PrometheusAddr)
	_, err = metrics.NewMetricsSink(fromJSON.Sinks)
	assert.Error(t, err)
}

func TestMultiSinkForwards(t *testing.T) {
	failing := &countingSink{err: errors.New("boom")}
	ok := &countingSink{}
	plain := &runOnlySink{}
	m := metrics.NewMultiSink(failing, ok, plain)

	err := m.RecordRun(metrics.RunRecord{RunID: "r1"})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 1, ok.runs, "a failing sink does not stop the others")
	assert.Equal(t, 1, plain.runs)

	require.NoError(t, m.RecordLimits(metrics.LimitRecord{Limits: []float64{3}}))
	assert.Equal(t, 1, failing.limits)
	assert.Equal(t, 1, ok.limits)

	require.NoError(t, m.RecordClamps("r1", "five_tariff", []model.Clamp{{Index: 1}}))
	require.NoError(t, m.RecordSeries(&model.Result{}))
}
