// Package metrics defines the sink interfaces simulation results are
// recorded through. A MetricsSink receives one RunRecord per simulation;
// sinks that also implement LimitRecorder, ClampRecorder or SeriesRecorder
// receive the optimized limits, the clamp events and the per-sample traces.
// Sinks are built from configuration through the factory registry and are
// combined with MultiSink when several are configured.
package metrics
