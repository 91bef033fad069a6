package health

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	manager "github.com/biodoia/nutrillm/internal/provider-manager"
	"github.com/biodoia/nutrillm/internal/providers"
	"github.com/biodoia/nutrillm/internal/providers/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingChecker struct {
	calls   atomic.Int32
	healthy atomic.Bool
}

func (c *countingChecker) HealthCheck(ctx context.Context) manager.HealthReport {
	c.calls.Add(1)
	status := "unhealthy"
	if c.healthy.Load() {
		status = "healthy"
	}
	return manager.HealthReport{
		Status:          status,
		CurrentProvider: "ollama",
		Services:        map[string]bool{"ollama": c.healthy.Load()},
	}
}

func TestMonitor_ChecksPeriodically(t *testing.T) {
	checker := &countingChecker{}
	checker.healthy.Store(true)

	m := NewMonitor(checker, 10*time.Millisecond, time.Second)
	m.Start()
	time.Sleep(55 * time.Millisecond)
	m.Stop()

	assert.GreaterOrEqual(t, checker.calls.Load(), int32(3))

	report, checks := m.Last()
	assert.True(t, report.Healthy())
	assert.Equal(t, int(checker.calls.Load()), checks)

	// Stop è idempotente e non ci sono altri controlli
	m.Stop()
	calls := checker.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, checker.calls.Load())
}

func TestMonitor_TracksTransitions(t *testing.T) {
	checker := &countingChecker{}
	m := NewMonitor(checker, time.Hour, time.Second)

	m.check()
	report, _ := m.Last()
	assert.False(t, report.Healthy())

	checker.healthy.Store(true)
	m.check()
	report, checks := m.Last()
	assert.True(t, report.Healthy())
	assert.Equal(t, 2, checks)
}

func TestMonitor_WithOrchestrator(t *testing.T) {
	registry := providers.NewRegistry()
	require.NoError(t, registry.Register(mock.New("ollama").SetHealthy(false), "ollama"))
	require.NoError(t, registry.Register(mock.New("openai"), "openai"))

	orch := manager.New(registry)
	m := NewMonitor(orch, time.Hour, time.Second)
	m.check()

	report, _ := m.Last()
	assert.True(t, report.Healthy())
	assert.Equal(t, map[string]bool{"ollama": false, "openai": true}, report.Services)
}

func TestNewMonitor_Defaults(t *testing.T) {
	m := NewMonitor(&countingChecker{}, 0, 0)
	assert.Equal(t, time.Minute, m.interval)
	assert.Equal(t, 10*time.Second, m.timeout)
}
