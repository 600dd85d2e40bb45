package metrics

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	coremetrics "github.com/kilianp07/bessim/core/metrics"
	"github.com/kilianp07/bessim/core/model"
	"github.com/kilianp07/bessim/infra/logger"
)

// seriesBatch bounds how many sample points go into one write request.
const seriesBatch = 5000

// InfluxSink writes simulation outcomes to InfluxDB using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 10 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	if err := sink.ping(); err != nil {
		sink.log.Errorf("%v; influx sink disabled", err)
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := s.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("influx health check: %w", err)
	}
	if health.Status != domain.HealthCheckStatusPass {
		return fmt.Errorf("influx health status: %s", health.Status)
	}
	return nil
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordRun writes one simulation_run point.
func (s *InfluxSink) RecordRun(rec coremetrics.RunRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("simulation_run").
		AddTag("run_id", rec.RunID).
		AddTag("strategy", rec.Strategy).
		AddTag("failed", strconv.FormatBool(rec.Failed))
	if rec.Battery != "" {
		p = p.AddTag("battery", rec.Battery)
	}
	p = p.AddField("samples", rec.Summary.Samples).
		AddField("peak_before_kw", round3(rec.Summary.PeakBeforeKW)).
		AddField("peak_after_kw", round3(rec.Summary.PeakAfterKW)).
		AddField("charged_kwh", round3(rec.Summary.ChargedKWh)).
		AddField("discharged_kwh", round3(rec.Summary.DischargedKWh)).
		AddField("clamps", rec.Summary.Clamps).
		AddField("duration_ms", round3(rec.Duration.Seconds()*1000)).
		SetTime(rec.Time)
	if rec.Error != "" {
		p = p.AddField("error", rec.Error)
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordLimits writes one power_limit point per block.
func (s *InfluxSink) RecordLimits(rec coremetrics.LimitRecord) error {
	if len(rec.Limits) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(rec.Limits))
	for i, l := range rec.Limits {
		block := 0
		if len(rec.Limits) > 1 {
			block = i + 1
		}
		p := write.NewPointWithMeasurement("power_limit").
			AddTag("run_id", rec.RunID).
			AddTag("strategy", rec.Strategy).
			AddTag("block", strconv.Itoa(block))
		if rec.Period != "" {
			p = p.AddTag("period", rec.Period)
		}
		points = append(points, p.AddField("limit_kw", round3(l)).SetTime(rec.Time))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordClamps writes one battery_clamp point per event at the sample time.
func (s *InfluxSink) RecordClamps(runID, strategy string, clamps []model.Clamp) error {
	if len(clamps) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, len(clamps))
	for i, c := range clamps {
		points[i] = write.NewPointWithMeasurement("battery_clamp").
			AddTag("run_id", runID).
			AddTag("strategy", strategy).
			AddTag("direction", c.Direction).
			AddField("requested_kw", round3(c.RequestedKW)).
			AddField("delivered_kw", round3(c.DeliveredKW)).
			SetTime(c.Time)
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordSeries writes the per-sample trace as simulation_sample points,
// batched to keep request bodies bounded.
func (s *InfluxSink) RecordSeries(r *model.Result) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	points := make([]*write.Point, 0, min(r.Len(), seriesBatch))
	for i := 0; i < r.Len(); i++ {
		p := write.NewPointWithMeasurement("simulation_sample").
			AddTag("run_id", r.RunID).
			AddTag("strategy", r.Strategy).
			AddField("load_kw", round3(r.Load[i])).
			AddField("battery_plus_kw", round3(r.BatteryPlus[i])).
			AddField("battery_minus_kw", round3(r.BatteryMinus[i])).
			AddField("power_after_kw", round3(r.PowerAfter[i])).
			AddField("energy_kwh", round3(r.Energy[i])).
			SetTime(r.Time[i])
		if r.Limits != nil {
			p = p.AddField("limit_kw", round3(r.Limits[i]))
		}
		points = append(points, p)
		if len(points) == seriesBatch {
			if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
				return err
			}
			points = points[:0]
		}
	}
	if len(points) == 0 {
		return nil
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
