package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrProviderNotFound      = errors.New("provider not found")
	ErrProviderAlreadyExists = errors.New("provider already exists")
	ErrNoProvidersAvailable  = errors.New("no providers available")
)

// Registry gestisce i backend registrati mantenendo l'ordine di registrazione
type Registry struct {
	backends map[string]Backend
	order    []string
	metadata map[string]*ProviderMetadata
	mu       sync.RWMutex
}

// ProviderMetadata contiene metadata su un backend
type ProviderMetadata struct {
	Name            string
	Type            string
	Model           string
	RegisteredAt    time.Time
	LastHealthCheck time.Time
	Healthy         bool
	SuccessCount    int
	ErrorCount      int
	AvgLatency      time.Duration
}

// NewRegistry crea un nuovo registry vuoto
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Backend),
		metadata: make(map[string]*ProviderMetadata),
	}
}

// Register registra un nuovo backend in coda all'ordine corrente
func (r *Registry) Register(backend Backend, providerType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := backend.Name()
	if _, exists := r.backends[name]; exists {
		return fmt.Errorf("%w: %s", ErrProviderAlreadyExists, name)
	}

	r.backends[name] = backend
	r.order = append(r.order, name)
	r.metadata[name] = &ProviderMetadata{
		Name:         name,
		Type:         providerType,
		Model:        backend.Model(),
		RegisteredAt: time.Now(),
	}

	log.Info().
		Str("provider", name).
		Str("type", providerType).
		Str("model", backend.Model()).
		Msg("Provider registered")

	return nil
}

// Get restituisce un backend per nome
func (r *Registry) Get(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	backend, exists := r.backends[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return backend, nil
}

// Has verifica se un backend è registrato
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.backends[name]
	return exists
}

// List restituisce i nomi dei backend in ordine di registrazione
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Count restituisce il numero di backend registrati
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Models restituisce il modello configurato per ogni backend
func (r *Registry) Models() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make(map[string]string, len(r.backends))
	for name, backend := range r.backends {
		models[name] = backend.Model()
	}
	return models
}

// GetMetadata restituisce una copia dei metadata di un backend
func (r *Registry) GetMetadata(name string) (*ProviderMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, exists := r.metadata[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	metaCopy := *meta
	return &metaCopy, nil
}

// HealthCheck sonda tutti i backend in parallelo, indipendentemente dal provider corrente
func (r *Registry) HealthCheck(ctx context.Context) map[string]bool {
	names := r.List()

	results := make(map[string]bool, len(names))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, name := range names {
		backend, err := r.Get(name)
		if err != nil {
			continue
		}

		wg.Add(1)
		go func(providerName string, b Backend) {
			defer wg.Done()

			start := time.Now()
			healthy := b.HealthCheck(ctx)
			latency := time.Since(start)

			mu.Lock()
			results[providerName] = healthy
			mu.Unlock()

			r.mu.Lock()
			if meta, ok := r.metadata[providerName]; ok {
				meta.LastHealthCheck = time.Now()
				meta.Healthy = healthy
			}
			r.mu.Unlock()

			log.Debug().
				Str("provider", providerName).
				Bool("healthy", healthy).
				Dur("latency", latency).
				Msg("Provider health check completed")
		}(name, backend)
	}

	wg.Wait()
	return results
}

// RecordSuccess registra una chiamata riuscita
func (r *Registry) RecordSuccess(name string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if meta, exists := r.metadata[name]; exists {
		meta.SuccessCount++
		if meta.AvgLatency == 0 {
			meta.AvgLatency = latency
		} else {
			meta.AvgLatency = (meta.AvgLatency + latency) / 2
		}
	}
}

// RecordError registra una chiamata fallita
func (r *Registry) RecordError(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if meta, exists := r.metadata[name]; exists {
		meta.ErrorCount++
	}
}
