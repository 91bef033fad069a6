package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/biodoia/nutrillm/internal/agents"
	"github.com/biodoia/nutrillm/internal/health"
	"github.com/biodoia/nutrillm/internal/memory"
	manager "github.com/biodoia/nutrillm/internal/provider-manager"
	"github.com/biodoia/nutrillm/internal/stats"
	"github.com/biodoia/nutrillm/pkg/config"
	"github.com/biodoia/nutrillm/pkg/middleware"
	"github.com/biodoia/nutrillm/pkg/models"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultPrompt è usato quando la richiesta non ha un prompt
	DefaultPrompt = "Привет! Я хочу совет по питанию и тренировкам."

	// ServiceName compare nella risposta di GET /
	ServiceName = "nutrition-llm"

	defaultChunkSize = 50

	// una risposta del planning con più passi richiede spesso decine di secondi
	slowRequestThreshold = 2 * time.Minute
)

// ProfileStore legge e salva i profili; Facts li rende come testo di contesto
type ProfileStore interface {
	Facts(ctx context.Context, chatID, userID int64) (string, error)
	Get(ctx context.Context, chatID, userID int64) (*models.Profile, error)
	Save(ctx context.Context, profile *models.Profile) error
}

// Deps contiene i componenti serviti dal gateway
type Deps struct {
	Router       *agents.Manager
	Orchestrator *manager.Orchestrator

	// Opzionali
	Memory   memory.Store
	Profiles ProfileStore
	Metrics  *stats.Metrics
	Health   *health.Monitor

	// StreamChunkSize è la dimensione in caratteri dei chunk NDJSON
	StreamChunkSize int
	// StreamInterval è la pausa tra un chunk e il successivo
	StreamInterval time.Duration
}

// Gateway è il server HTTP davanti al router degli agenti
type Gateway struct {
	config *config.Config
	app    *fiber.App
	deps   Deps
}

// New crea una nuova istanza del gateway
func New(cfg *config.Config, deps Deps) (*Gateway, error) {
	if deps.Router == nil {
		return nil, errors.New("gateway requires an agent router")
	}
	if deps.Orchestrator == nil {
		return nil, errors.New("gateway requires a provider orchestrator")
	}
	if deps.StreamChunkSize <= 0 {
		deps.StreamChunkSize = defaultChunkSize
	}

	app := fiber.New(fiber.Config{
		AppName:      "NutriLLM Gateway",
		ServerHeader: "NutriLLM/1.0",
		ErrorHandler: customErrorHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	gw := &Gateway{
		config: cfg,
		app:    app,
		deps:   deps,
	}

	gw.setupMiddlewares()
	gw.setupRoutes()

	return gw, nil
}

// App restituisce l'applicazione fiber (usata nei test)
func (g *Gateway) App() *fiber.App {
	return g.app
}

// customErrorHandler gestisce gli errori globali
func customErrorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":      message,
		"request_id": middleware.GetRequestID(c),
	})
}

// setupMiddlewares configura i middleware globali
func (g *Gateway) setupMiddlewares() {
	g.app.Use(middleware.RequestID())
	g.app.Use(middleware.Recovery())
	g.app.Use(cors.New(cors.Config{
		AllowOrigins:  g.config.Server.CORSOrigins,
		AllowMethods:  []string{fiber.MethodGet, fiber.MethodPost, fiber.MethodPut, fiber.MethodDelete, fiber.MethodOptions},
		AllowHeaders:  []string{fiber.HeaderOrigin, fiber.HeaderContentType, fiber.HeaderAccept, middleware.RequestIDHeader, middleware.APIKeyHeader, middleware.RequestUserHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        86400,
	}))
	g.app.Use(middleware.Logging(middleware.LoggingConfig{
		SkipPaths:     []string{"/health", "/metrics"},
		SlowThreshold: slowRequestThreshold,
	}))
}

// setupRoutes configura le route HTTP
func (g *Gateway) setupRoutes() {
	// Public endpoints
	g.app.Get("/", g.handleRoot)
	g.app.Get("/health", g.handleHealth)
	g.app.Get("/status", g.handleStatus)
	g.app.Get("/switch-provider/:provider", g.handleSwitchProvider)
	g.app.Get("/agents", g.handleAgents)
	g.app.Get("/stats", g.handleStats)

	if g.deps.Metrics != nil && g.config.Monitoring.Prometheus.Enabled {
		g.app.Get("/metrics", adaptor.HTTPHandler(g.deps.Metrics.Handler()))
	}

	// Protected endpoints
	auth := middleware.APIKey(middleware.APIKeyConfig{
		Key:       g.config.Auth.APIKey,
		RateLimit: g.config.Auth.RateLimit,
	})
	g.app.Post("/ask", auth, g.handleAsk)
	g.app.Post("/detect_type", auth, g.handleDetectType)
	g.app.Get("/history", auth, g.handleHistory)
	g.app.Delete("/memory", auth, g.handleClearMemory)
	g.app.Get("/profile", auth, g.handleGetProfile)
	g.app.Put("/profile", auth, g.handleSaveProfile)

	if g.config.Auth.APIKey == "" {
		log.Warn().Msg("⚠️ auth.api_key is empty, protected routes are open")
	}
}

// Start avvia il gateway
func (g *Gateway) Start() error {
	if g.deps.Health != nil {
		g.deps.Health.Start()
	}

	addr := g.config.Server.Address()
	log.Info().Str("address", addr).Msg("🚀 Gateway listening")

	return g.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown esegue lo shutdown graceful del gateway
func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.deps.Health != nil {
		g.deps.Health.Stop()
	}

	if err := g.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	log.Info().Msg("🛑 Gateway shutdown completed")
	return nil
}
