package metrics

import (
	"net/http"

	"codeberg.org/mutker/irrigatectl/internal/dashboard"
	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/logger"
	"codeberg.org/mutker/irrigatectl/internal/pump"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "irrigation"

type service struct {
	registry *prometheus.Registry
	handler  http.Handler

	reading   *prometheus.GaugeVec
	status    *prometheus.GaugeVec
	position  *prometheus.GaugeVec
	running   prometheus.Gauge
	auto      prometheus.Gauge
	flow      prometheus.Gauge
	stale     prometheus.Gauge
	skipped   prometheus.Gauge
	updated   prometheus.Gauge
	published prometheus.Counter
	ticks     prometheus.Gauge
}

// No-op implementation
type noopCollector struct{}

// NewService returns a collector backed by its own registry, or a no-op
// collector when metrics are disabled.
func NewService(cfg Config, log logger.Logger) (Collector, error) {
	errFactory := errors.New()

	if log == nil {
		log = logger.Nop()
	}

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Metrics export disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	s := &service{
		registry: prometheus.NewRegistry(),
		reading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading_value",
			Help:      "Latest raw reading per metric.",
		}, []string{"metric", "unit"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading_status",
			Help:      "Latest status per metric: 0 good, 1 warning, 2 critical.",
		}, []string{"metric"}),
		position: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading_position_ratio",
			Help:      "Latest reading as a fraction of its band.",
		}, []string{"metric"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pump_running",
			Help:      "1 while the pump is running.",
		}),
		auto: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pump_auto_mode",
			Help:      "1 while the pump is in automatic mode.",
		}),
		flow: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flow_rate_liters_per_minute",
			Help:      "Flow rate derived from the pump state.",
		}),
		stale: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_stale",
			Help:      "1 while the shown readings are older than the last tick.",
		}),
		skipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "skipped_ticks",
			Help:      "Consecutive ticks skipped because the source was unavailable.",
		}),
		updated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_updated_timestamp_seconds",
			Help:      "Time of the last snapshot update.",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Snapshots published, including stale and command refreshes.",
		}),
		ticks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ticks_processed",
			Help:      "Successful ticks since start.",
		}),
	}

	for _, c := range []prometheus.Collector{
		s.reading, s.status, s.position, s.running, s.auto, s.flow,
		s.stale, s.skipped, s.updated, s.published, s.ticks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := s.registry.Register(c); err != nil {
			return nil, errFactory.Wrap(ErrRegister, err)
		}
	}

	s.handler = promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})

	log.Debug().Str("path", cfg.Path).Msg("Metrics exporter initialized")

	return s, nil
}

func (s *service) Observe(snap *dashboard.Snapshot) {
	if snap == nil {
		return
	}

	for _, v := range snap.Metrics {
		name := v.Metric.String()
		s.reading.WithLabelValues(name, v.Unit).Set(v.Reading.Value)
		s.status.WithLabelValues(name).Set(float64(v.Status))
		s.position.WithLabelValues(name).Set(v.Position)
	}

	s.running.Set(boolToFloat(snap.Pump.Running))
	s.auto.Set(boolToFloat(snap.Pump.Mode == pump.Auto))
	s.flow.Set(snap.FlowRate)
	s.stale.Set(boolToFloat(snap.Stale))
	s.skipped.Set(float64(snap.SkippedTicks))
	s.updated.Set(float64(snap.UpdatedAt.UnixNano()) / 1e9)
	s.ticks.Set(float64(snap.Tick))
	s.published.Inc()
}

func (s *service) Handler() http.Handler {
	return s.handler
}

func (*service) Enabled() bool {
	return true
}

// No-op implementation
func (*noopCollector) Observe(*dashboard.Snapshot) {}

func (*noopCollector) Handler() http.Handler {
	return http.NotFoundHandler()
}

func (*noopCollector) Enabled() bool {
	return false
}
