package stats

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters_SuccessRate(t *testing.T) {
	tests := []struct {
		name     string
		counters Counters
		want     float64
	}{
		{"no requests", Counters{}, 0},
		{"all success", Counters{Total: 4, SuccessCount: 4}, 1},
		{"half", Counters{Total: 4, SuccessCount: 2, ErrorCount: 2}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.counters.SuccessRate())
		})
	}
}

func TestMetrics_ObserveRoute(t *testing.T) {
	m := NewMetrics("test")

	m.ObserveRoute("nutrition", "success", 100*time.Millisecond)
	m.ObserveRoute("nutrition", "error", 300*time.Millisecond)
	m.ObserveRoute("simple", "success", time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.routesTotal.WithLabelValues("nutrition", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.routesTotal.WithLabelValues("nutrition", "error")))

	summary := m.Summary()
	require.Len(t, summary.Agents, 2)
	assert.Equal(t, "nutrition", summary.Agents[0].Name)
	assert.Equal(t, int64(2), summary.Agents[0].Total)
	assert.Equal(t, 200*time.Millisecond, summary.Agents[0].AvgLatency)
	assert.Equal(t, "simple", summary.Agents[1].Name)
}

func TestMetrics_OrchestratorEvents(t *testing.T) {
	m := NewMetrics("")

	m.ObserveBackendCall("ollama", false, time.Second)
	m.ObserveBackendCall("openai", true, time.Second)
	m.ObserveProviderErrors("ollama", 3)
	m.ObserveProviderSwitch("ollama", "openai")
	m.ObserveProviderHealth("ollama", false)
	m.ObserveProviderHealth("openai", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendRequests.WithLabelValues("ollama", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.providerErrors.WithLabelValues("ollama")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.switchesTotal.WithLabelValues("ollama", "openai")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.providerUp.WithLabelValues("ollama")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerUp.WithLabelValues("openai")))

	summary := m.Summary()
	assert.Equal(t, int64(1), summary.Switches)
	assert.Equal(t, map[string]bool{"ollama": false, "openai": true}, summary.Healthy)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("nutrillm")
	m.ObserveRoute("planning", "success", time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `nutrillm_routes_total{agent="planning",status="success"} 1`)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics("same")
	b := NewMetrics("same")

	a.ObserveRoute("simple", "success", time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.routesTotal.WithLabelValues("simple", "success")))
}
