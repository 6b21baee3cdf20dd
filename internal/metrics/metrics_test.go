package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Flush(10)
	m.Hydration("snapshot")
	m.AgentStart("started")
	m.Selection("stale")
	m.TerminalCreated()
	m.ResizeSent()
	m.SurfaceMounted(1)
}

func TestCounters(t *testing.T) {
	m := New()
	m.Flush(5)
	m.Flush(7)
	m.Selection("stale")
	m.Selection("applied")
	m.Selection("applied")
	m.SurfaceMounted(3)
	m.SurfaceMounted(-1)

	assert.Equal(t, 2.0, value(t, m.OutputFlushes))
	assert.Equal(t, 12.0, value(t, m.OutputBytes))
	assert.Equal(t, 2.0, value(t, m.Selections.WithLabelValues("applied")))
	assert.Equal(t, 1.0, value(t, m.Selections.WithLabelValues("stale")))
	assert.Equal(t, 2.0, value(t, m.SurfacesMounted))
}

func TestIndependentInstances(t *testing.T) {
	a, b := New(), New()
	a.TerminalCreated()
	assert.Equal(t, 1.0, value(t, a.TerminalsCreated))
	assert.Equal(t, 0.0, value(t, b.TerminalsCreated))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ResizeSent()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "termdeck_resizes_sent_total 1"))
}

func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, c.Write(&out))
	if out.Counter != nil {
		return out.Counter.GetValue()
	}
	return out.Gauge.GetValue()
}
