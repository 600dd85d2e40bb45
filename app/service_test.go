package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bessim/config"
	"github.com/kilianp07/bessim/core/battery"
	"github.com/kilianp07/bessim/core/control"
	"github.com/kilianp07/bessim/core/factory"
	coremetrics "github.com/kilianp07/bessim/core/metrics"
	"github.com/kilianp07/bessim/core/model"
	"github.com/kilianp07/bessim/core/optimize"
	"github.com/kilianp07/bessim/core/runlog"
	infrarunlog "github.com/kilianp07/bessim/infra/runlog"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) RecordRun(rec coremetrics.RunRecord) error {
	args := m.Called(rec)
	return args.Error(0)
}

type capturePublisher struct {
	mu   sync.Mutex
	runs []string
}

func (p *capturePublisher) PublishResult(_ context.Context, r *model.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = append(p.runs, r.RunID)
	return nil
}

var scenarioLoads = []float64{0, -3, -2, 8, 7, 6, 7, 8, 3, 5, 4, -2, 0, 2, 0, 0, 0}

func scenario() *model.Series {
	return model.FromValues(time.Date(2024, 7, 1, 0, 15, 0, 0, time.UTC), 15*time.Minute, scenarioLoads)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.RunLog.Path = filepath.Join(t.TempDir(), "runs.jsonl")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunBatch(t *testing.T) {
	cfg := testConfig(t)
	store, err := infrarunlog.NewJSONLStore(cfg.RunLog.Path)
	require.NoError(t, err)
	sink := &mockSink{}
	sink.On("RecordRun", mock.MatchedBy(func(r coremetrics.RunRecord) bool { return !r.Failed })).Return(nil).Times(4)
	pub := &capturePublisher{}

	svc, err := New(context.Background(), cfg, WithSink(sink), WithStore(store), WithPublisher(pub))
	require.NoError(t, err)

	small := battery.Params{Name: "small", CapacityKWh: 10, MaxChargeKW: 5, MaxDischargeKW: 5}
	pw, err := battery.LookupPreset("tesla_powerwall")
	require.NoError(t, err)
	jobs := []Job{
		{Battery: small, Kind: control.ProductionSaving},
		{Battery: small, Kind: control.InstalledPowerLimit},
		{Battery: pw, Kind: control.ProductionSaving},
		{Battery: pw, Kind: control.MTVTShifting},
	}
	results, err := svc.RunBatch(context.Background(), scenario(), jobs)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i, r := range results {
		require.NoError(t, r.Err, "job %d", i)
		assert.Equal(t, jobs[i], r.Job)
		assert.Equal(t, jobs[i].Kind.String(), r.Result.Strategy)
	}
	assert.InDelta(t, 0.75, results[0].FinalEnergy, 1e-9)
	assert.InDeltaSlice(t, []float64{0, -3, -2, 3, 3, 3}, results[1].Result.PowerAfter[:6], 1e-9)

	require.NoError(t, svc.Close())
	sink.AssertExpectations(t)
	assert.Len(t, pub.runs, 4)

	recs, err := store.Query(context.Background(), runlog.Query{})
	require.NoError(t, err)
	assert.Len(t, recs, 4)
	recs, err = store.Query(context.Background(), runlog.Query{Strategy: control.InstalledPowerLimit.String()})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []float64{3}, recs[0].Limits)
}

func TestRunBatchKeepsGoingAfterJobFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulation.ConnectionLimitKW = 10
	sink := &mockSink{}
	sink.On("RecordRun", mock.Anything).Return(nil)

	svc, err := New(context.Background(), cfg, WithSink(sink))
	require.NoError(t, err)
	defer svc.Close()

	spiky := model.FromValues(time.Date(2024, 7, 1, 0, 15, 0, 0, time.UTC), 15*time.Minute, []float64{2, 20, 2})
	small := battery.Params{Name: "small", CapacityKWh: 10, MaxChargeKW: 5, MaxDischargeKW: 5}
	results, err := svc.RunBatch(context.Background(), spiky, []Job{
		{Battery: small, Kind: control.InstalledPowerLimit},
		{Battery: small, Kind: control.ProductionSaving},
		{Battery: battery.Params{Name: "broken"}, Kind: control.ProductionSaving},
	})
	require.NoError(t, err)
	assert.ErrorIs(t, results[0].Err, optimize.ErrInfeasiblePowerLimit)
	assert.NoError(t, results[1].Err)
	assert.ErrorIs(t, results[2].Err, battery.ErrConfiguration)
}

func TestRunBatchSharesOneSeries(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulation.BatchWorkers = 8
	svc, err := New(context.Background(), cfg, WithSink(coremetrics.NopSink{}))
	require.NoError(t, err)
	defer svc.Close()

	series := scenario()
	small := battery.Params{Name: "small", CapacityKWh: 10, MaxChargeKW: 5, MaxDischargeKW: 5}
	jobs := make([]Job, 8)
	for i := range jobs {
		jobs[i] = Job{Battery: small, Kind: control.ProductionSaving}
	}
	results, err := svc.RunBatch(context.Background(), series, jobs)
	require.NoError(t, err)
	require.Len(t, results, len(jobs))
	for i, r := range results {
		require.NoError(t, r.Err, "job %d", i)
		assert.InDelta(t, 0.75, r.FinalEnergy, 1e-9, "job %d", i)
	}
	assert.Equal(t, scenarioLoads, series.Powers())
}

func TestRunBatchCancelled(t *testing.T) {
	svc, err := New(context.Background(), testConfig(t), WithSink(coremetrics.NopSink{}))
	require.NoError(t, err)
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	small := battery.Params{CapacityKWh: 10, MaxChargeKW: 5, MaxDischargeKW: 5}
	_, err = svc.RunBatch(ctx, scenario(), []Job{{Battery: small, Kind: control.ProductionSaving}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewBuildsConfiguredStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.RunLog.Backend = "sqlite"
	cfg.RunLog.Path = filepath.Join(t.TempDir(), "runs.db")
	cfg.Metrics.Sinks = nil

	svc, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, svc.Store())

	b := battery.MustNew(battery.Params{Name: "small", CapacityKWh: 10, MaxChargeKW: 5, MaxDischargeKW: 5})
	_, err = svc.Run(context.Background(), scenario(), b, control.BlockPowerReduction)
	require.NoError(t, err)

	// wait for the recorder before closing the store
	require.Eventually(t, func() bool {
		recs, err := svc.Store().Query(context.Background(), runlog.Query{})
		return err == nil && len(recs) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, svc.Close())
}

func TestNewRejectsUnknownSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "nop"}, {Type: "graphite"}}
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
