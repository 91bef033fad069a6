package health

import (
	"context"
	"sync"
	"time"

	manager "github.com/biodoia/nutrillm/internal/provider-manager"
	"github.com/rs/zerolog/log"
)

// Checker è la sorgente dei report di salute
type Checker interface {
	HealthCheck(ctx context.Context) manager.HealthReport
}

// Monitor sonda periodicamente i provider e logga i cambi di stato
type Monitor struct {
	checker  Checker
	interval time.Duration
	timeout  time.Duration

	mu     sync.RWMutex
	last   manager.HealthReport
	checks int

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewMonitor crea un nuovo monitor
func NewMonitor(checker Checker, interval, timeout time.Duration) *Monitor {
	if interval <= 0 {
		log.Warn().Dur("interval", interval).Msg("Invalid health check interval, using default 1m")
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Monitor{
		checker:  checker,
		interval: interval,
		timeout:  timeout,
		done:     make(chan struct{}),
	}
}

// Start avvia il monitoraggio; il primo controllo è immediato
func (m *Monitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.check()
		for {
			select {
			case <-ticker.C:
				m.check()
			case <-m.done:
				return
			}
		}
	}()

	log.Info().Dur("interval", m.interval).Msg("Health monitoring started")
}

// Stop ferma il monitoraggio e attende la fine del controllo in corso
func (m *Monitor) Stop() {
	m.once.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
	log.Info().Msg("Health monitoring stopped")
}

// Last restituisce l'ultimo report e il numero di controlli eseguiti
func (m *Monitor) Last() (manager.HealthReport, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last, m.checks
}

func (m *Monitor) check() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	report := m.checker.HealthCheck(ctx)

	m.mu.Lock()
	previous := m.last
	m.last = report
	m.checks++
	m.mu.Unlock()

	for name, healthy := range report.Services {
		before, known := previous.Services[name]
		switch {
		case !known:
			log.Info().Str("provider", name).Bool("healthy", healthy).Msg("Provider health")
		case before && !healthy:
			log.Warn().Str("provider", name).Msg("⚠️ Provider became unhealthy")
		case !before && healthy:
			log.Info().Str("provider", name).Msg("✅ Provider recovered")
		}
	}

	if !report.Healthy() {
		log.Error().Str("current", report.CurrentProvider).Msg("❌ No healthy providers")
	}

	log.Debug().
		Str("status", report.Status).
		Str("current", report.CurrentProvider).
		Msg("Health check completed")
}
