package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/1broseidon/taskmirror/internal/capability"
	"github.com/1broseidon/taskmirror/internal/display"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskmirror"

// Call results.
const (
	ResultOK          = "ok"
	ResultError       = "error"
	ResultUnsupported = "unsupported"
)

// Metrics holds the daemon's Prometheus collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	HostCalls        *prometheus.CounterVec
	HostCallDuration *prometheus.HistogramVec
	Resolutions      *prometheus.CounterVec
	Invalidations    *prometheus.CounterVec

	DisplayWidth    prometheus.Gauge
	DisplayHeight   prometheus.Gauge
	DisplayRotation prometheus.Gauge
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		HostCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "host_calls_total",
				Help:      "Task service invocations by operation and result",
			},
			[]string{"operation", "result"},
		),
		HostCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "host_call_duration_seconds",
				Help:      "Task service invocation latency in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
		Resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capability_resolutions_total",
				Help:      "Cached capability resolutions by operation, entry point and result",
			},
			[]string{"operation", "method", "result"},
		),
		Invalidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "display_invalidations_total",
				Help:      "Capture invalidations by notification channel",
			},
			[]string{"channel"},
		),

		DisplayWidth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "display_width_pixels",
			Help:      "Tracked display width, 0 when unknown",
		}),
		DisplayHeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "display_height_pixels",
			Help:      "Tracked display height, 0 when unknown",
		}),
		DisplayRotation: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "display_rotation",
			Help:      "Tracked display rotation in quarter turns, -1 when unknown",
		}),
	}
}

// ObserveCall records a host invocation. Unsupported operations never reach
// the host and are counted without a latency sample.
func (m *Metrics) ObserveCall(op capability.Operation, elapsed time.Duration, err error) {
	result := resultOf(err)
	m.HostCalls.WithLabelValues(string(op), result).Inc()
	if result != ResultUnsupported {
		m.HostCallDuration.WithLabelValues(string(op)).Observe(elapsed.Seconds())
	}
}

// ObserveResolution records a cached capability resolution.
func (m *Metrics) ObserveResolution(op capability.Operation, name string, err error) {
	m.Resolutions.WithLabelValues(string(op), name, resultOf(err)).Inc()
}

// ObserveInvalidation records an invalidation and the state behind it.
func (m *Metrics) ObserveInvalidation(ch display.Channel, s display.State) {
	m.Invalidations.WithLabelValues(string(ch)).Inc()
	m.SetDisplayState(s)
}

// SetDisplayState publishes the tracked display state.
func (m *Metrics) SetDisplayState(s display.State) {
	if s.SizeKnown {
		m.DisplayWidth.Set(float64(s.Size.Width))
		m.DisplayHeight.Set(float64(s.Size.Height))
	} else {
		m.DisplayWidth.Set(0)
		m.DisplayHeight.Set(0)
	}
	m.DisplayRotation.Set(float64(s.Rotation))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, capability.ErrUnsupported):
		return ResultUnsupported
	default:
		return ResultError
	}
}
