package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the watcher's metrics. A nil *Manager is valid and records
// nothing.
type Manager struct {
	namespace   string
	tickBuckets []float64
	registry    *prometheus.Registry
	pprof       bool
	pprofToken  string

	ticks            *prometheus.CounterVec
	tickDuration     prometheus.Histogram
	devices          prometheus.Gauge
	weightEvents     *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	stickersSkipped  prometheus.Counter
	dispatchFailures *prometheus.CounterVec
	parseFailures    prometheus.Counter
	fetchFailures    *prometheus.CounterVec
	reconnects       prometheus.Counter
	restarts         *prometheus.CounterVec
	generatorResults *prometheus.CounterVec
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:   "seattlehumus",
		tickBuckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m.init()
	return m
}

func (m *Manager) init() {
	auto := promauto.With(m.registry)

	m.ticks = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "poll_ticks_total",
		Help:      "Poll ticks by result.",
	}, []string{"result"})
	m.tickDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "poll_tick_duration_seconds",
		Help:      "Time spent collecting and dispatching in one tick.",
		Buckets:   m.tickBuckets,
	})
	m.devices = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "devices",
		Help:      "Litter boxes visible in the current session.",
	})
	m.weightEvents = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "weight_events_total",
		Help:      "New weight events seen, by cat.",
	}, []string{"cat"})
	m.notifications = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "notifications_sent_total",
		Help:      "Notifications delivered, by cat.",
	}, []string{"cat"})
	m.stickersSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "stickers_skipped_total",
		Help:      "Stickers rejected by Telegram as unknown file ids.",
	})
	m.dispatchFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "dispatch_failures_total",
		Help:      "Failed notifications, by stage.",
	}, []string{"stage"})
	m.parseFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "weight_parse_failures_total",
		Help:      "Weight events whose text had no weight.",
	})
	m.fetchFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "history_fetch_failures_total",
		Help:      "History fetch failures, by device.",
	}, []string{"device"})
	m.reconnects = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "reconnects_total",
		Help:      "Device account sessions re-opened after a session loss.",
	})
	m.restarts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "goroutine_restarts_total",
		Help:      "Supervised goroutine restarts, by name.",
	}, []string{"name"})
	m.generatorResults = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "generated_messages_total",
		Help:      "Message texts by source (generated or fallback).",
	}, []string{"source"})
}

func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Manager) ObserveTick(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ticks.WithLabelValues(result).Inc()
	m.tickDuration.Observe(d.Seconds())
}

func (m *Manager) SetDevices(n int) {
	if m == nil {
		return
	}
	m.devices.Set(float64(n))
}

func (m *Manager) WeightEvent(cat string) {
	if m == nil {
		return
	}
	m.weightEvents.WithLabelValues(cat).Inc()
}

func (m *Manager) NotificationSent(cat string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(cat).Inc()
}

func (m *Manager) StickerSkipped() {
	if m == nil {
		return
	}
	m.stickersSkipped.Inc()
}

func (m *Manager) DispatchFailed(stage string) {
	if m == nil {
		return
	}
	m.dispatchFailures.WithLabelValues(stage).Inc()
}

func (m *Manager) ParseFailed() {
	if m == nil {
		return
	}
	m.parseFailures.Inc()
}

func (m *Manager) FetchFailed(device string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(device).Inc()
}

func (m *Manager) Reconnected() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Manager) Restarted(name string) {
	if m == nil {
		return
	}
	m.restarts.WithLabelValues(name).Inc()
}

func (m *Manager) MessageGenerated(fallback bool) {
	if m == nil {
		return
	}
	source := "generated"
	if fallback {
		source = "fallback"
	}
	m.generatorResults.WithLabelValues(source).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Serve exposes /metrics, /healthz and (when enabled) the profiler on addr
// until ctx is cancelled.
func (m *Manager) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if err := m.mountPprof(mux, addr); err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
