package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// RequestIDHeader porta il request ID in ingresso e in uscita
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey chiave per il request ID nei Locals
	RequestIDKey ContextKey = "request_id"

	// AgentKey chiave per l'agente che ha servito la richiesta
	AgentKey ContextKey = "agent"

	maxRequestIDLen = 64
)

// LoggingConfig configurazione del middleware di logging
type LoggingConfig struct {
	// Logger personalizzato (opzionale)
	Logger *zerolog.Logger
	// SkipPaths non vengono loggati (probe e scrape)
	SkipPaths []string
	// SlowThreshold oltre il quale la richiesta è loggata come warning (0 = mai)
	SlowThreshold time.Duration
}

// RequestID riusa l'ID del client se plausibile, altrimenti ne genera uno
func RequestID() fiber.Handler {
	return func(c fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = uuid.NewString()
		}

		c.Locals(string(RequestIDKey), requestID)
		c.Set(RequestIDHeader, requestID)

		return c.Next()
	}
}

// SetAgent annota l'agente scelto, riportato poi nel log di accesso
func SetAgent(c fiber.Ctx, agent string) {
	c.Locals(string(AgentKey), agent)
}

// Logging scrive una riga per richiesta. Il corpo non viene mai loggato:
// contiene le domande degli utenti.
func Logging(config LoggingConfig) fiber.Handler {
	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}

	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skip[path] = struct{}{}
	}

	return func(c fiber.Ctx) error {
		if _, ok := skip[c.Path()]; ok {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		// l'error handler gira dopo: lo status va ricavato dall'errore
		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		slow := config.SlowThreshold > 0 && latency > config.SlowThreshold

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400 || slow:
			event = logger.Warn()
		default:
			event = logger.Info()
		}

		event = event.
			Str("request_id", GetRequestID(c)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", latency)

		if agent, ok := c.Locals(string(AgentKey)).(string); ok && agent != "" {
			event = event.Str("agent", agent)
		}
		if err != nil {
			event = event.Err(err)
		}

		msg := "request completed"
		if slow {
			msg = "slow request"
		}
		event.Msg(msg)

		return err
	}
}

// GetRequestID estrae il request ID dai Locals
func GetRequestID(c fiber.Ctx) string {
	requestID, ok := c.Locals(string(RequestIDKey)).(string)
	if !ok {
		return ""
	}
	return requestID
}
