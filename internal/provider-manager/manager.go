package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/biodoia/nutrillm/internal/providers"
	"github.com/rs/zerolog/log"
)

// DefaultMaxErrors è la soglia di errori consecutivi oltre la quale si cambia provider
const DefaultMaxErrors = 3

var (
	ErrAllProvidersUnavailable = errors.New("Все LLM провайдеры недоступны")
	ErrProviderUnavailable     = errors.New("provider unavailable")
)

// Observer riceve gli eventi dell'orchestratore (metriche, monitor)
type Observer interface {
	ObserveBackendCall(provider string, ok bool, duration time.Duration)
	ObserveProviderSwitch(from, to string)
	ObserveProviderErrors(provider string, consecutive int)
	ObserveProviderHealth(provider string, healthy bool)
}

// Orchestrator sceglie il provider corrente e gestisce failover e retry
type Orchestrator struct {
	registry *providers.Registry

	mu          sync.Mutex
	current     string
	errorCounts map[string]int
	disabled    map[string]bool

	maxErrors int
	startedAt time.Time
	observer  Observer
}

// Option configura l'orchestratore
type Option func(*Orchestrator)

// WithMaxErrors imposta la soglia di errori consecutivi
func WithMaxErrors(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxErrors = n
		}
	}
}

// WithDefaultProvider imposta il provider corrente iniziale
func WithDefaultProvider(name string) Option {
	return func(o *Orchestrator) {
		if o.registry.Has(name) {
			o.current = name
		}
	}
}

// WithObserver collega un osservatore degli eventi
func WithObserver(observer Observer) Option {
	return func(o *Orchestrator) {
		o.observer = observer
	}
}

// New crea un orchestratore sui backend del registry; il provider iniziale
// è il primo registrato, salvo WithDefaultProvider
func New(registry *providers.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:    registry,
		current:     providers.NoneProvider,
		errorCounts: make(map[string]int),
		disabled:    make(map[string]bool),
		maxErrors:   DefaultMaxErrors,
		startedAt:   time.Now(),
	}

	if names := registry.List(); len(names) > 0 {
		o.current = names[0]
	}
	for _, name := range registry.List() {
		o.errorCounts[name] = 0
	}

	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry restituisce il registry dei backend
func (o *Orchestrator) Registry() *providers.Registry {
	return o.registry
}

// Initialize sonda tutti i backend e ne registra lo stato nei log
func (o *Orchestrator) Initialize(ctx context.Context) {
	log.Info().Msg("🔧 Initializing provider orchestrator...")

	for _, name := range o.registry.List() {
		backend, err := o.registry.Get(name)
		if err != nil {
			continue
		}
		available := backend.IsAvailable(ctx)
		if o.observer != nil {
			o.observer.ObserveProviderHealth(name, available)
		}
		if available {
			log.Info().Str("provider", name).Str("model", backend.Model()).Msg("✅ Provider available")
		} else {
			log.Warn().Str("provider", name).Str("model", backend.Model()).Msg("❌ Provider unavailable")
		}
	}

	log.Info().Str("current_provider", o.Current()).Msg("Provider orchestrator ready")
}

// Current restituisce il nome del provider corrente (o "none")
func (o *Orchestrator) Current() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Ask invia la richiesta al provider corrente con failover automatico.
// Non restituisce mai un errore Go: l'esaurimento dei provider produce
// una Response di fallimento con provider "none".
func (o *Orchestrator) Ask(ctx context.Context, prompt, contextText string) providers.Response {
	current := o.Current()
	log.Debug().Str("current_provider", current).Msg("📨 Request")

	if current == providers.NoneProvider {
		return o.switchProviderAndRetry(ctx, prompt, contextText, current)
	}

	backend, err := o.registry.Get(current)
	if err != nil || !o.usable(ctx, backend) {
		return o.switchProviderAndRetry(ctx, prompt, contextText, current)
	}

	resp := o.call(ctx, backend, prompt, contextText)
	if resp.OK() {
		o.resetErrors(current)
		return resp
	}

	return o.handleError(ctx, current, resp, prompt, contextText)
}

// handleError aggiorna i contatori del provider fallito e, superata la soglia
// o su errore di quota, passa alla prima alternativa disponibile ritentando una volta
func (o *Orchestrator) handleError(ctx context.Context, provider string, failed providers.Response, prompt, contextText string) providers.Response {
	quota := providers.IsQuotaError(failed.Error)
	count := o.recordError(provider, quota)

	log.Warn().
		Str("provider", provider).
		Str("error", failed.Error).
		Int("consecutive_errors", count).
		Bool("quota", quota).
		Msg("⚠️ Provider error")

	if quota {
		log.Error().Str("provider", provider).Msg("💸 Quota exhausted, provider disabled until restart")
	}

	if !quota && count < o.maxErrors {
		return failed
	}

	alt := o.firstAvailable(ctx, provider)
	if alt == nil {
		log.Warn().Str("provider", provider).Msg("No alternative provider available")
		return failed
	}

	o.setCurrent(alt.Name(), "error threshold")

	retry := o.call(ctx, alt, prompt, contextText)
	if retry.OK() {
		o.resetErrors(alt.Name())
	} else {
		o.recordError(alt.Name(), providers.IsQuotaError(retry.Error))
	}
	return retry
}

// switchProviderAndRetry è usato quando il provider corrente non è disponibile:
// sceglie il primo backend disponibile in ordine di registrazione e invia la richiesta
func (o *Orchestrator) switchProviderAndRetry(ctx context.Context, prompt, contextText, unavailable string) providers.Response {
	alt := o.firstAvailable(ctx, unavailable)
	if alt == nil {
		o.setCurrent(providers.NoneProvider, "all providers unavailable")
		log.Error().Msg("❌ All providers unavailable")
		return providers.Failure(ErrAllProvidersUnavailable, providers.NoneProvider)
	}

	o.setCurrent(alt.Name(), "current provider unavailable")

	resp := o.call(ctx, alt, prompt, contextText)
	if resp.OK() {
		o.resetErrors(alt.Name())
		return resp
	}
	return o.handleError(ctx, alt.Name(), resp, prompt, contextText)
}

// SwitchProvider cambia manualmente provider; riesce solo se il backend
// è registrato, non disabilitato per quota e disponibile
func (o *Orchestrator) SwitchProvider(ctx context.Context, name string) bool {
	return o.Switch(ctx, name) == nil
}

// Switch è come SwitchProvider ma riporta il motivo del rifiuto
func (o *Orchestrator) Switch(ctx context.Context, name string) error {
	backend, err := o.registry.Get(name)
	if err != nil {
		log.Warn().Err(err).Msg("Manual switch to unknown provider refused")
		return err
	}

	if !o.usable(ctx, backend) {
		log.Warn().Str("provider", name).Msg("Manual switch to unavailable provider refused")
		return fmt.Errorf("%w: %s", ErrProviderUnavailable, name)
	}

	o.resetErrors(name)
	o.setCurrent(name, "manual")
	return nil
}

// HealthReport è il risultato di HealthCheck
type HealthReport struct {
	Status          string          `json:"status"`
	CurrentProvider string          `json:"current_provider"`
	Services        map[string]bool `json:"services"`
}

// Healthy riporta se almeno un provider è sano
func (r HealthReport) Healthy() bool {
	return r.Status == "healthy"
}

// HealthCheck sonda ogni provider registrato, anche se nessuno è selezionato
func (o *Orchestrator) HealthCheck(ctx context.Context) HealthReport {
	services := o.registry.HealthCheck(ctx)

	overall := false
	for name, healthy := range services {
		if o.observer != nil {
			o.observer.ObserveProviderHealth(name, healthy)
		}
		if healthy {
			overall = true
		}
	}

	status := "unhealthy"
	if overall {
		status = "healthy"
	}

	return HealthReport{
		Status:          status,
		CurrentProvider: o.Current(),
		Services:        services,
	}
}

// Status è lo snapshot dello stato dell'orchestratore
type Status struct {
	CurrentProvider string            `json:"current_provider"`
	ErrorCounts     map[string]int    `json:"error_counts"`
	MaxErrors       int               `json:"max_errors"`
	Models          map[string]string `json:"models"`
	Disabled        []string          `json:"disabled"`
	Providers       []string          `json:"providers"`
	Uptime          string            `json:"uptime"`
}

// Status restituisce contatori, modelli e provider corrente
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	counts := make(map[string]int, len(o.errorCounts))
	for name, c := range o.errorCounts {
		counts[name] = c
	}
	disabled := make([]string, 0, len(o.disabled))
	for _, name := range o.registry.List() {
		if o.disabled[name] {
			disabled = append(disabled, name)
		}
	}
	current := o.current
	o.mu.Unlock()

	return Status{
		CurrentProvider: current,
		ErrorCounts:     counts,
		MaxErrors:       o.maxErrors,
		Models:          o.registry.Models(),
		Disabled:        disabled,
		Providers:       o.registry.List(),
		Uptime:          time.Since(o.startedAt).Round(time.Second).String(),
	}
}

// ErrorCount restituisce il numero di errori consecutivi di un provider
func (o *Orchestrator) ErrorCount(name string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errorCounts[name]
}

// IsDisabled riporta se il provider è stato disabilitato per quota
func (o *Orchestrator) IsDisabled(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.disabled[name]
}

// call esegue la richiesta su un backend senza tenere il lock
func (o *Orchestrator) call(ctx context.Context, backend providers.Backend, prompt, contextText string) providers.Response {
	start := time.Now()
	resp := backend.Ask(ctx, prompt, contextText)
	duration := time.Since(start)

	if resp.Provider == "" {
		resp.Provider = backend.Name()
	}

	if resp.OK() {
		o.registry.RecordSuccess(backend.Name(), duration)
	} else {
		o.registry.RecordError(backend.Name())
	}
	if o.observer != nil {
		o.observer.ObserveBackendCall(backend.Name(), resp.OK(), duration)
	}
	return resp
}

// usable riporta se il backend non è disabilitato e risponde al probe
func (o *Orchestrator) usable(ctx context.Context, backend providers.Backend) bool {
	o.mu.Lock()
	disabled := o.disabled[backend.Name()]
	o.mu.Unlock()

	if disabled {
		return false
	}
	return backend.IsAvailable(ctx)
}

// firstAvailable restituisce il primo backend utilizzabile in ordine di registrazione, escluso skip
func (o *Orchestrator) firstAvailable(ctx context.Context, skip string) providers.Backend {
	for _, name := range o.registry.List() {
		if name == skip {
			continue
		}
		backend, err := o.registry.Get(name)
		if err != nil {
			continue
		}
		if o.usable(ctx, backend) {
			return backend
		}
	}
	return nil
}

func (o *Orchestrator) recordError(name string, quota bool) int {
	o.mu.Lock()
	o.errorCounts[name]++
	count := o.errorCounts[name]
	if quota {
		o.disabled[name] = true
	}
	o.mu.Unlock()

	if o.observer != nil {
		o.observer.ObserveProviderErrors(name, count)
	}
	return count
}

func (o *Orchestrator) resetErrors(name string) {
	o.mu.Lock()
	changed := o.errorCounts[name] != 0
	o.errorCounts[name] = 0
	o.mu.Unlock()

	if changed && o.observer != nil {
		o.observer.ObserveProviderErrors(name, 0)
	}
}

func (o *Orchestrator) setCurrent(name, reason string) {
	o.mu.Lock()
	from := o.current
	o.current = name
	o.mu.Unlock()

	if from == name {
		return
	}

	log.Info().
		Str("from", from).
		Str("to", name).
		Str("reason", reason).
		Msg("🔄 Provider switched")

	if o.observer != nil {
		o.observer.ObserveProviderSwitch(from, name)
	}
}

// String implementa fmt.Stringer per i log
func (o *Orchestrator) String() string {
	return fmt.Sprintf("Orchestrator(current=%s, providers=%v)", o.Current(), o.registry.List())
}
