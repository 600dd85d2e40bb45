package metrics

import (
	"fmt"

	"github.com/kilianp07/bessim/core/factory"
	coremetrics "github.com/kilianp07/bessim/core/metrics"
)

// influxConf is the "conf" block of an influx sink.
type influxConf struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
	// Strict fails sink creation when InfluxDB is unreachable instead of
	// falling back to a NopSink.
	Strict bool `json:"strict"`
}

func newInfluxFromConf(conf map[string]any) (coremetrics.MetricsSink, error) {
	var c influxConf
	if err := factory.Decode(conf, &c); err != nil {
		return nil, err
	}
	if c.URL == "" || c.Org == "" || c.Bucket == "" {
		return nil, fmt.Errorf("influx sink needs url, org and bucket")
	}
	if !c.Strict {
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	}
	s := NewInfluxSink(c.URL, c.Token, c.Org, c.Bucket)
	if err := s.ping(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})
	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		s, err := NewPromSink()
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	_ = coremetrics.RegisterMetricsSink("influx", newInfluxFromConf)
}
