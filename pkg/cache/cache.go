package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Cache è l'interfaccia comune ai backend di cache
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Stats() CacheStats
	Close() error
}

// CacheStats contiene statistiche sul cache
type CacheStats struct {
	Hits    int64
	Misses  int64
	Sets    int64
	Deletes int64
	Size    int64
}

// HitRate calcola il tasso di hit del cache
func (s *CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Config seleziona e configura il backend di cache
type Config struct {
	// Backend: "memory" (default), "redis" o "none"
	Backend string

	MemoryMaxEntries int
	TTL              time.Duration

	RedisHost     string
	RedisPassword string
	RedisDB       int
}

// DefaultConfig restituisce una configurazione di default
func DefaultConfig() Config {
	return Config{
		Backend:          "memory",
		MemoryMaxEntries: 10000,
		TTL:              10 * time.Minute,
		RedisHost:        "localhost:6379",
	}
}

// New crea il backend richiesto. Se Redis non è raggiungibile si ripiega sulla
// cache in memoria; "none" restituisce nil.
func New(cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "", "memory":
		return NewMemoryCache(cfg.MemoryMaxEntries, cfg.TTL), nil
	case "redis":
		rc, err := NewRedisCache(cfg.RedisHost, cfg.RedisPassword, cfg.RedisDB, cfg.TTL)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing with memory-only")
			return NewMemoryCache(cfg.MemoryMaxEntries, cfg.TTL), nil
		}
		log.Info().
			Str("host", cfg.RedisHost).
			Int("db", cfg.RedisDB).
			Msg("Redis cache initialized")
		return rc, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
	}
}

// Key compone una chiave leggibile con un prefisso e un hash delle parti
func Key(prefix string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(parts, "\x00")))
	return prefix + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}

// Errori comuni
var (
	ErrCacheMiss     = errors.New("cache miss")
	ErrInvalidConfig = errors.New("invalid cache configuration")
)
