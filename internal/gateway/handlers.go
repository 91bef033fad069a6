package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/biodoia/nutrillm/internal/agents"
	"github.com/biodoia/nutrillm/pkg/middleware"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// AskRequest è il corpo di POST /ask
type AskRequest struct {
	Prompt    string `json:"prompt"`
	AgentType string `json:"agent_type"`
	Context   string `json:"context"`
	Stream    bool   `json:"stream"`
	ChatID    int64  `json:"chat_id"`
	UserID    int64  `json:"user_id"`
}

// AskResponse è la risposta di POST /ask
type AskResponse struct {
	Answer    string `json:"answer"`
	AgentType string `json:"agent_type"`
	Status    string `json:"status"`
	Error     string `json:"error"`
}

// DetectRequest è il corpo di POST /detect_type
type DetectRequest struct {
	Query string `json:"query"`
}

// StreamChunk è una riga NDJSON della risposta in streaming
type StreamChunk struct {
	Chunk     string `json:"chunk,omitempty"`
	Error     string `json:"error,omitempty"`
	AgentType string `json:"agent_type,omitempty"`
	Done      bool   `json:"done,omitempty"`
}

// handleRoot endpoint radice
func (g *Gateway) handleRoot(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": ServiceName,
	})
}

// handleHealth sonda tutti i provider registrati
func (g *Gateway) handleHealth(c fiber.Ctx) error {
	return c.JSON(g.deps.Orchestrator.HealthCheck(c.Context()))
}

// handleStatus restituisce lo stato dell'orchestratore
func (g *Gateway) handleStatus(c fiber.Ctx) error {
	return c.JSON(g.deps.Orchestrator.Status())
}

// handleSwitchProvider cambia manualmente il provider corrente
func (g *Gateway) handleSwitchProvider(c fiber.Ctx) error {
	provider := c.Params("provider")

	if !g.deps.Orchestrator.SwitchProvider(c.Context(), provider) {
		return fiber.NewError(fiber.StatusBadRequest, "Невозможно переключиться на указанный провайдер")
	}

	return c.JSON(fiber.Map{
		"message":  "Переключились на " + provider,
		"provider": g.deps.Orchestrator.Current(),
	})
}

// handleAgents elenca gli agenti registrati
func (g *Gateway) handleAgents(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"agents":   g.deps.Router.Agents(),
		"fallback": g.deps.Router.Fallback(),
	})
}

// handleStats restituisce gli aggregati in memoria
func (g *Gateway) handleStats(c fiber.Ctx) error {
	if g.deps.Metrics == nil {
		return fiber.NewError(fiber.StatusNotFound, "stats disabled")
	}
	return c.JSON(g.deps.Metrics.Summary())
}

// handleDetectType classifica la domanda senza chiamare alcun backend
func (g *Gateway) handleDetectType(c fiber.Ctx) error {
	var req DetectRequest
	if err := c.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Query required")
	}

	agentType := g.deps.Router.Classify(req.Query)
	middleware.SetAgent(c, agentType)

	return c.JSON(fiber.Map{"type": agentType})
}

// handleAsk instrada la domanda verso l'agente appropriato
func (g *Gateway) handleAsk(c fiber.Ctx) error {
	var req AskRequest
	if err := c.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = DefaultPrompt
	}
	agentType := strings.TrimSpace(req.AgentType)
	if agentType == "" {
		agentType = agents.AgentAuto
	}

	query := prompt
	if req.Context != "" {
		query = req.Context + "\n" + prompt
	}

	ctx := c.Context()
	requestID := middleware.GetRequestID(c)

	// il topic della memoria è l'agente scelto sulla sola domanda,
	// così lo storico non influenza la classificazione
	topic := g.deps.Router.Resolve(query, agentType).Descriptor().Name
	if background := g.conversationContext(ctx, req, topic); background != "" {
		query = background + "\n" + query
	}

	result := g.deps.Router.Route(ctx, query, topic)
	middleware.SetAgent(c, result.AgentType)

	log.Info().
		Str("request_id", requestID).
		Str("requested", agentType).
		Str("agent", result.AgentType).
		Str("status", result.Status).
		Dur("duration", result.Duration).
		Msg("Ask completed")

	if result.OK() {
		g.remember(ctx, req, prompt, result)
	}

	resp := AskResponse{
		Answer:    result.Answer,
		AgentType: result.AgentType,
		Status:    result.Status,
		Error:     result.Error,
	}

	if req.Stream {
		return g.stream(c, resp)
	}
	return c.JSON(resp)
}

// conversationContext unisce profilo e memoria; gli errori non bloccano la richiesta
func (g *Gateway) conversationContext(ctx context.Context, req AskRequest, topic string) string {
	if req.ChatID == 0 && req.UserID == 0 {
		return ""
	}

	var parts []string

	if g.deps.Profiles != nil {
		facts, err := g.deps.Profiles.Facts(ctx, req.ChatID, req.UserID)
		if err != nil {
			log.Warn().Err(err).Int64("chat_id", req.ChatID).Msg("Failed to load profile")
		} else if facts != "" {
			parts = append(parts, facts)
		}
	}

	if g.deps.Memory != nil {
		history, err := g.deps.Memory.GetContext(ctx, req.ChatID, req.UserID, topic)
		if err != nil {
			log.Warn().Err(err).Int64("chat_id", req.ChatID).Msg("Failed to load memory")
		} else if history != "" {
			parts = append(parts, history)
		}
	}

	return strings.Join(parts, "\n")
}

// remember salva lo scambio riuscito nella memoria
func (g *Gateway) remember(ctx context.Context, req AskRequest, prompt string, result agents.RoutingResult) {
	if g.deps.Memory == nil || (req.ChatID == 0 && req.UserID == 0) {
		return
	}
	if err := g.deps.Memory.Append(ctx, req.ChatID, req.UserID, prompt, result.Answer, result.AgentType); err != nil {
		log.Warn().Err(err).Int64("chat_id", req.ChatID).Msg("Failed to save memory")
	}
}

// stream invia la risposta come righe NDJSON {"chunk": ...} chiuse da {"done": true}.
// Un errore produce una sola riga {"error": ..., "done": true}.
func (g *Gateway) stream(c fiber.Ctx, resp AskResponse) error {
	var chunks []string
	if resp.Status == agents.StatusSuccess {
		chunks = splitRunes(resp.Answer, g.deps.StreamChunkSize)
	}
	interval := g.deps.StreamInterval

	c.Set(fiber.HeaderContentType, "application/x-ndjson")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		enc := json.NewEncoder(w)
		for i, chunk := range chunks {
			if i > 0 && interval > 0 {
				time.Sleep(interval)
			}
			if err := enc.Encode(StreamChunk{Chunk: chunk}); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				// client disconnesso
				return
			}
		}
		enc.Encode(StreamChunk{Error: resp.Error, AgentType: resp.AgentType, Done: true})
		w.Flush()
	})
}

// splitRunes divide il testo in pezzi di al massimo size caratteri
func splitRunes(text string, size int) []string {
	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/size+1)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
