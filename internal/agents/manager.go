package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrDuplicateAgent  = errors.New("duplicate agent name")
	ErrUnknownFallback = errors.New("fallback agent not registered")
)

// Status del RoutingResult
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RoutingResult è il risultato strutturato di Route
type RoutingResult struct {
	Answer    string        `json:"answer"`
	AgentType string        `json:"agent_type"`
	Requested string        `json:"requested_type,omitempty"`
	Status    string        `json:"status"`
	Error     string        `json:"error"`
	Duration  time.Duration `json:"-"`
}

// OK riporta se il routing si è concluso con successo
func (r RoutingResult) OK() bool {
	return r.Status == StatusSuccess
}

// RouteObserver riceve un evento per ogni richiesta instradata
type RouteObserver interface {
	ObserveRoute(agent, status string, duration time.Duration)
}

// Deps contiene le dipendenze iniettate negli agenti all'avvio
type Deps struct {
	// Orchestrator serve il SimpleAgent
	Orchestrator LLM

	// Fast è usato per sotto-task e passi del piano
	Fast LLM

	// Quality è usato per sintesi e report finali
	Quality LLM

	// StepTimeout limita ogni task parallelo (0 = solo il contesto della richiesta)
	StepTimeout time.Duration
}

// Declarations restituisce gli agenti nell'ordine di dichiarazione
func Declarations(deps Deps) []Agent {
	fast, quality := deps.Fast, deps.Quality
	if fast == nil {
		fast = deps.Orchestrator
	}
	if quality == nil {
		quality = deps.Orchestrator
	}

	return []Agent{
		NewNutritionAgent(fast, quality, deps.StepTimeout),
		NewPlanningAgent(fast, quality, deps.StepTimeout),
		NewSimpleAgent(deps.Orchestrator),
	}
}

// Manager classifica le domande e le passa all'agente corrispondente.
// Il registry è costruito una volta e non cambia più.
type Manager struct {
	registry map[string]Agent
	order    []string
	priority []string
	fallback string
	observer RouteObserver
}

// ManagerOption configura il Manager
type ManagerOption func(*Manager)

// WithRouteObserver collega un osservatore del routing
func WithRouteObserver(observer RouteObserver) ManagerOption {
	return func(m *Manager) {
		m.observer = observer
	}
}

// NewManager costruisce il registry dagli agenti dichiarati. La priorità di
// classificazione è l'ordine di dichiarazione, con il fallback escluso.
func NewManager(declared []Agent, fallback string, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		registry: make(map[string]Agent, len(declared)),
		fallback: fallback,
	}

	for _, agent := range declared {
		name := agent.Descriptor().Name
		if _, exists := m.registry[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAgent, name)
		}
		m.registry[name] = agent
		m.order = append(m.order, name)
		if name != fallback {
			m.priority = append(m.priority, name)
		}

		log.Info().
			Str("agent", name).
			Str("description", agent.Descriptor().Description).
			Msg("Registered agent")
	}

	if _, ok := m.registry[fallback]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFallback, fallback)
	}

	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Classify restituisce il nome dell'agente per la domanda. È una funzione pura:
// nessuna chiamata al modello e nessuno stato modificato.
func (m *Manager) Classify(query string) string {
	lower := strings.ToLower(query)
	for _, name := range m.priority {
		if m.registry[name].Descriptor().Matches(lower) {
			return name
		}
	}
	return m.fallback
}

// Resolve restituisce l'agente da usare per il tipo richiesto
func (m *Manager) Resolve(query, agentType string) Agent {
	if agentType == "" || agentType == AgentAuto {
		return m.registry[m.Classify(query)]
	}
	if agent, ok := m.registry[agentType]; ok {
		return agent
	}
	log.Warn().Str("agent_type", agentType).Msg("Unknown agent type, using fallback")
	return m.registry[m.fallback]
}

// Route instrada la domanda e traduce il risultato dell'agente in un RoutingResult.
// Un testo con il marker di errore diventa status=error con answer vuota.
func (m *Manager) Route(ctx context.Context, query, agentType string) RoutingResult {
	if agentType == "" {
		agentType = AgentAuto
	}

	start := time.Now()
	agent := m.Resolve(query, agentType)
	name := agent.Descriptor().Name

	log.Info().
		Str("agent", name).
		Str("requested", agentType).
		Msg("🔄 Routing request to agent")

	outcome := m.process(ctx, agent, query)
	if outcome.OK() {
		// un agente può ancora restituire testo marcato come errore
		outcome = ParseMarked(outcome.Text())
	}

	result := RoutingResult{
		AgentType: name,
		Requested: agentType,
		Duration:  time.Since(start),
	}

	if outcome.OK() {
		result.Answer = outcome.Text()
		result.Status = StatusSuccess
		log.Info().Str("agent", name).Dur("duration", result.Duration).Msg("✅ Agent finished")
	} else {
		result.Status = StatusError
		result.Error = outcome.Reason()
		log.Warn().Str("agent", name).Str("error", result.Error).Msg("❌ Agent failed")
	}

	if m.observer != nil {
		m.observer.ObserveRoute(name, result.Status, result.Duration)
	}
	return result
}

// process protegge il confine dell'agente da panic
func (m *Manager) process(ctx context.Context, agent Agent, query string) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("agent", agent.Descriptor().Name).
				Interface("panic", r).
				Msg("Agent panicked")
			outcome = Failure(fmt.Sprintf("internal error: %v", r))
		}
	}()
	return agent.Process(ctx, query)
}

// Agents restituisce i descrittori in ordine di dichiarazione
func (m *Manager) Agents() []Descriptor {
	out := make([]Descriptor, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.registry[name].Descriptor())
	}
	return out
}

// Fallback restituisce il nome dell'agente di default
func (m *Manager) Fallback() string {
	return m.fallback
}

// Has verifica se un agente è registrato
func (m *Manager) Has(name string) bool {
	_, ok := m.registry[name]
	return ok
}
