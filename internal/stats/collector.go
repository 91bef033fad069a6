package stats

import (
	"sort"
	"sync"
	"time"
)

// Counters aggrega richieste e latenza per una chiave (agente o provider)
type Counters struct {
	Name         string        `json:"name"`
	Total        int64         `json:"total"`
	SuccessCount int64         `json:"success"`
	ErrorCount   int64         `json:"errors"`
	AvgLatency   time.Duration `json:"-"`
	AvgLatencyMs int64         `json:"avg_latency_ms"`
	LastUpdated  time.Time     `json:"last_updated"`

	totalLatency time.Duration
}

// SuccessRate restituisce la percentuale di successi (0.0-1.0)
func (c Counters) SuccessRate() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.SuccessCount) / float64(c.Total)
}

// Summary è la fotografia esposta da /stats
type Summary struct {
	Agents    []Counters      `json:"agents"`
	Providers []Counters      `json:"providers"`
	Switches  int64           `json:"switches"`
	Healthy   map[string]bool `json:"healthy"`
	Since     time.Time       `json:"since"`
}

// Collector mantiene aggregati in memoria, affiancati alle metriche Prometheus
type Collector struct {
	mu        sync.RWMutex
	agents    map[string]*Counters
	providers map[string]*Counters
	healthy   map[string]bool
	switches  int64
	since     time.Time
}

// NewCollector crea un collector vuoto
func NewCollector() *Collector {
	return &Collector{
		agents:    make(map[string]*Counters),
		providers: make(map[string]*Counters),
		healthy:   make(map[string]bool),
		since:     time.Now(),
	}
}

func (c *Collector) recordRoute(agent string, ok bool, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record(c.agents, agent, ok, d)
}

func (c *Collector) recordCall(provider string, ok bool, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record(c.providers, provider, ok, d)
}

func (c *Collector) recordSwitch() {
	c.mu.Lock()
	c.switches++
	c.mu.Unlock()
}

func (c *Collector) recordHealth(provider string, healthy bool) {
	c.mu.Lock()
	c.healthy[provider] = healthy
	c.mu.Unlock()
}

func record(m map[string]*Counters, name string, ok bool, d time.Duration) {
	entry, exists := m[name]
	if !exists {
		entry = &Counters{Name: name}
		m[name] = entry
	}

	entry.Total++
	if ok {
		entry.SuccessCount++
	} else {
		entry.ErrorCount++
	}
	entry.totalLatency += d
	entry.AvgLatency = entry.totalLatency / time.Duration(entry.Total)
	entry.AvgLatencyMs = entry.AvgLatency.Milliseconds()
	entry.LastUpdated = time.Now()
}

// Snapshot restituisce una copia ordinata per nome
func (c *Collector) Snapshot() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	healthy := make(map[string]bool, len(c.healthy))
	for k, v := range c.healthy {
		healthy[k] = v
	}

	return Summary{
		Agents:    sorted(c.agents),
		Providers: sorted(c.providers),
		Switches:  c.switches,
		Healthy:   healthy,
		Since:     c.since,
	}
}

func sorted(m map[string]*Counters) []Counters {
	out := make([]Counters, 0, len(m))
	for _, v := range m {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
