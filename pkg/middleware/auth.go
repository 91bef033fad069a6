package middleware

import (
	"crypto/subtle"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ContextKey tipo per le chiavi nei Locals
type ContextKey string

const (
	// APIKeyHeader è l'header con il segreto condiviso
	APIKeyHeader = "X-API-Key"

	// RequestUserHeader identifica l'utente finale dietro un client condiviso
	RequestUserHeader = "X-Request-User"

	cleanupInterval = 5 * time.Minute
)

// APIKeyConfig configurazione del middleware di autenticazione
type APIKeyConfig struct {
	// Key è il segreto atteso; vuoto disabilita il controllo
	Key string
	// RateLimit in richieste al minuto per utente, o per IP se l'utente
	// non è indicato (0 = illimitato)
	RateLimit int
}

// clientRateLimiter gestisce il rate limiting per client
type clientRateLimiter struct {
	limiters    map[string]*rate.Limiter
	mu          sync.Mutex
	limit       rate.Limit
	burst       int
	lastCleanup time.Time
}

func newClientRateLimiter(requestsPerMinute int) *clientRateLimiter {
	return &clientRateLimiter{
		limiters:    make(map[string]*rate.Limiter),
		limit:       rate.Limit(requestsPerMinute) / 60.0, // Converti a rate per secondo
		burst:       requestsPerMinute,
		lastCleanup: time.Now(),
	}
}

func (rl *clientRateLimiter) allow(key string) bool {
	rl.mu.Lock()
	if time.Since(rl.lastCleanup) > cleanupInterval {
		rl.cleanup()
	}
	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = limiter
	}
	rl.mu.Unlock()

	return limiter.Allow()
}

// cleanup rimuove i limiters a riposo; va chiamata con il lock
func (rl *clientRateLimiter) cleanup() {
	for key, limiter := range rl.limiters {
		if limiter.Tokens() >= float64(rl.burst) {
			delete(rl.limiters, key)
		}
	}
	rl.lastCleanup = time.Now()
}

// clientKey sceglie a chi addebitare la richiesta: l'utente dichiarato, altrimenti l'IP
func clientKey(c fiber.Ctx) string {
	if user := c.Get(RequestUserHeader); user != "" && len(user) <= maxRequestIDLen {
		return "user:" + user
	}
	return "ip:" + c.IP()
}

// APIKey rifiuta con 403 le richieste senza il segreto corretto,
// prima che raggiungano qualsiasi handler.
func APIKey(config APIKeyConfig) fiber.Handler {
	var limiter *clientRateLimiter
	if config.RateLimit > 0 {
		limiter = newClientRateLimiter(config.RateLimit)
	}

	expected := []byte(config.Key)

	return func(c fiber.Ctx) error {
		key := c.Get(APIKeyHeader)

		if len(expected) > 0 && subtle.ConstantTimeCompare([]byte(key), expected) != 1 {
			log.Warn().
				Str("request_id", GetRequestID(c)).
				Str("path", c.Path()).
				Str("ip", c.IP()).
				Msg("Rejected request with invalid API key")
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":      "Unauthorized",
				"request_id": GetRequestID(c),
			})
		}

		if limiter != nil && !limiter.allow(clientKey(c)) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":      "rate limit exceeded",
				"request_id": GetRequestID(c),
			})
		}

		return c.Next()
	}
}
