// Package app wires the simulation engine to the configured sinks, run log
// and publishers.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/bessim/config"
	"github.com/kilianp07/bessim/core/battery"
	"github.com/kilianp07/bessim/core/control"
	"github.com/kilianp07/bessim/core/events"
	coremetrics "github.com/kilianp07/bessim/core/metrics"
	"github.com/kilianp07/bessim/core/model"
	coremon "github.com/kilianp07/bessim/core/monitoring"
	coremqtt "github.com/kilianp07/bessim/core/mqtt"
	"github.com/kilianp07/bessim/core/runlog"
	"github.com/kilianp07/bessim/core/simulation"
	"github.com/kilianp07/bessim/infra/logger"
	"github.com/kilianp07/bessim/infra/metrics"
	"github.com/kilianp07/bessim/infra/monitoring"
	"github.com/kilianp07/bessim/infra/mqtt"
	_ "github.com/kilianp07/bessim/infra/runlog"
	"github.com/kilianp07/bessim/internal/eventbus"
)

// Service runs simulations and fans their events out to the metrics sinks,
// the run log and the MQTT publisher.
type Service struct {
	cfg       *config.Config
	opts      control.Options
	bus       *eventbus.Bus[events.RunEvent]
	sink      coremetrics.MetricsSink
	store     runlog.Store
	publisher coremqtt.Publisher
	log       logger.Logger

	cancel  context.CancelFunc
	done    []<-chan struct{}
	closers []func() error
}

// Option overrides a dependency built from the configuration.
type Option func(*Service)

// WithSink replaces the configured metrics sinks.
func WithSink(s coremetrics.MetricsSink) Option { return func(svc *Service) { svc.sink = s } }

// WithStore replaces the configured run log store. The caller keeps
// ownership and closes it.
func WithStore(s runlog.Store) Option { return func(svc *Service) { svc.store = s } }

// WithPublisher replaces the MQTT publisher.
func WithPublisher(p coremqtt.Publisher) Option { return func(svc *Service) { svc.publisher = p } }

// New builds the service and starts the event consumers. They run until
// Close or until ctx is cancelled.
func New(ctx context.Context, cfg *config.Config, options ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	svc := &Service{cfg: cfg, log: logger.New("service")}
	for _, o := range options {
		o(svc)
	}

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, err
	}
	coremon.Init(mon)

	cl, err := cfg.Tariff.Classifier()
	if err != nil {
		return nil, fmt.Errorf("tariff: %w", err)
	}
	svc.opts = cfg.Simulation.ControlOptions(cl, logger.New("control"))

	if svc.sink == nil {
		sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
		if err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
		svc.sink = sink
		if c, ok := sink.(interface{ Close() }); ok {
			svc.closers = append(svc.closers, func() error { c.Close(); return nil })
		}
	}
	if svc.store == nil && !cfg.RunLog.Disabled {
		store, err := runlog.NewStore(cfg.RunLog.ModuleConfig())
		if err != nil {
			_ = svc.shutdown()
			return nil, fmt.Errorf("run log: %w", err)
		}
		svc.store = store
		svc.closers = append(svc.closers, store.Close)
	}
	if svc.publisher == nil && cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewResultPublisher(cfg.MQTT)
		if err != nil {
			_ = svc.shutdown()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.publisher = pub
		svc.closers = append(svc.closers, func() error { pub.Disconnect(); return nil })
	}

	svc.bus = eventbus.NewBuffered[events.RunEvent](256)
	runCtx, cancel := context.WithCancel(ctx)
	svc.cancel = cancel
	svc.done = append(svc.done,
		metrics.StartEventCollector(runCtx, svc.bus, svc.sink, cfg.Metrics.RecordSeries),
		runlog.StartRecorder(runCtx, svc.bus, svc.store, logger.New("runlog")),
	)
	if svc.publisher != nil {
		svc.done = append(svc.done, mqtt.StartForwarder(runCtx, svc.bus, svc.publisher, logger.New("mqtt_forwarder")))
	}
	if addr := cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(runCtx, addr, prometheus.DefaultGatherer); err != nil {
				svc.log.Errorf("prom server: %v", err)
			}
		}()
	}
	return svc, nil
}

// Config returns the configuration the service was built from.
func (s *Service) Config() *config.Config { return s.cfg }

// Store returns the run log store, nil when disabled.
func (s *Service) Store() runlog.Store { return s.store }

// NewEngine returns an engine for b publishing on the service bus.
func (s *Service) NewEngine(b *battery.State) *simulation.Engine {
	return simulation.NewEngine(b, s.opts, s.bus, logger.New("engine"))
}

// Run simulates one strategy on b.
func (s *Service) Run(ctx context.Context, series *model.Series, b *battery.State, kind control.Kind) (*model.Result, error) {
	return s.NewEngine(b).Run(ctx, series, kind)
}

// Job is one (battery, strategy) pair of a batch.
type Job struct {
	Battery battery.Params
	Kind    control.Kind
}

// JobResult holds the outcome of a Job. Err is set when the job failed; the
// other jobs still run.
type JobResult struct {
	Job         Job
	Result      *model.Result
	FinalEnergy float64
	Err         error
}

// RunBatch runs every job over series concurrently, each on its own
// battery. At most simulation.batch_workers jobs run at once. Only context
// cancellation aborts the batch.
func (s *Service) RunBatch(ctx context.Context, series *model.Series, jobs []Job) ([]JobResult, error) {
	out := make([]JobResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	if n := s.cfg.Simulation.BatchWorkers; n > 0 {
		g.SetLimit(n)
	}
	for i, job := range jobs {
		g.Go(func() error {
			defer coremon.Recover()
			out[i].Job = job
			if err := gctx.Err(); err != nil {
				out[i].Err = err
				return err
			}
			b, err := battery.New(job.Battery)
			if err != nil {
				out[i].Err = err
				return nil
			}
			res, err := s.Run(gctx, series, b, job.Kind)
			out[i].Result, out[i].Err, out[i].FinalEnergy = res, err, b.Energy()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// Close stops the consumers after they drained the pending events and
// releases the stores, sinks and connections the service created.
func (s *Service) Close() error {
	if s.bus != nil {
		s.bus.Close()
	}
	wait, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, d := range s.done {
		select {
		case <-d:
		case <-wait.Done():
		}
	}
	if wait.Err() != nil {
		s.log.Warnf("event consumers did not stop in time")
	}
	if s.cancel != nil {
		s.cancel()
	}
	if d := s.bus; d != nil && d.Dropped() > 0 {
		s.log.Warnf("%d run events dropped by slow consumers", d.Dropped())
	}
	coremon.Flush(2 * time.Second)
	return s.shutdown()
}

func (s *Service) shutdown() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
