// Package metrics exposes prometheus instrumentation for the workspace layer.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	OutputFlushes    prometheus.Counter
	OutputBytes      prometheus.Counter
	Hydrations       *prometheus.CounterVec
	AgentStarts      *prometheus.CounterVec
	Selections       *prometheus.CounterVec
	TerminalsCreated prometheus.Counter
	ResizesSent      prometheus.Counter
	SurfacesMounted  prometheus.Gauge
}

// New creates collectors registered on a private registry, so independent
// instances can coexist in tests.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		OutputFlushes: f.NewCounter(prometheus.CounterOpts{
			Name: "termdeck_output_flushes_total",
			Help: "Number of batched writes delivered to terminal widgets",
		}),
		OutputBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "termdeck_output_bytes_total",
			Help: "Bytes delivered to terminal widgets",
		}),
		Hydrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "termdeck_hydrations_total",
			Help: "Surface hydrations by result",
		}, []string{"result"}),
		AgentStarts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "termdeck_agent_starts_total",
			Help: "Agent start attempts by result",
		}, []string{"result"}),
		Selections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "termdeck_selections_total",
			Help: "Selection changes by outcome",
		}, []string{"outcome"}),
		TerminalsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "termdeck_terminals_created_total",
			Help: "Backend terminals created",
		}),
		ResizesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "termdeck_resizes_sent_total",
			Help: "Resize requests propagated to the backend",
		}),
		SurfacesMounted: f.NewGauge(prometheus.GaugeOpts{
			Name: "termdeck_surfaces_mounted",
			Help: "Currently mounted terminal surfaces",
		}),
	}
}

// Flush records one batched write of n bytes.
func (m *Metrics) Flush(n int) {
	if m == nil {
		return
	}
	m.OutputFlushes.Inc()
	m.OutputBytes.Add(float64(n))
}

// Hydration records a hydration result ("snapshot", "degraded").
func (m *Metrics) Hydration(result string) {
	if m == nil {
		return
	}
	m.Hydrations.WithLabelValues(result).Inc()
}

// AgentStart records an agent start result.
func (m *Metrics) AgentStart(result string) {
	if m == nil {
		return
	}
	m.AgentStarts.WithLabelValues(result).Inc()
}

// Selection records a selection outcome ("applied", "stale", "failed").
func (m *Metrics) Selection(outcome string) {
	if m == nil {
		return
	}
	m.Selections.WithLabelValues(outcome).Inc()
}

// TerminalCreated records one backend creation.
func (m *Metrics) TerminalCreated() {
	if m == nil {
		return
	}
	m.TerminalsCreated.Inc()
}

// ResizeSent records one propagated resize.
func (m *Metrics) ResizeSent() {
	if m == nil {
		return
	}
	m.ResizesSent.Inc()
}

// SurfaceMounted adjusts the mounted surface gauge by delta.
func (m *Metrics) SurfaceMounted(delta int) {
	if m == nil {
		return
	}
	m.SurfacesMounted.Add(float64(delta))
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
