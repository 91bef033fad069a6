// Package memory conserva gli scambi passati e i profili utente e li rende
// come testo di contesto per le richieste successive.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/biodoia/nutrillm/pkg/cache"
	"github.com/biodoia/nutrillm/pkg/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// DefaultContextTurns è il numero di scambi restituiti da GetContext
	DefaultContextTurns = 5

	// DefaultTopic è usato quando la richiesta non ha un topic
	DefaultTopic = "general"

	// DefaultHistoryTurns e MaxHistoryTurns limitano History
	DefaultHistoryTurns = 3
	MaxHistoryTurns     = 10
)

var ErrProfileNotFound = errors.New("profile not found")

// Store è la memoria conversazionale vista dal gateway
type Store interface {
	GetContext(ctx context.Context, chatID, userID int64, topic string) (string, error)
	Append(ctx context.Context, chatID, userID int64, userMessage, aiResponse, topic string) error
	History(ctx context.Context, chatID, userID int64, n int) ([]models.ConversationTurn, error)
	Clear(ctx context.Context, chatID, userID int64) error
}

// DBStore salva gli scambi su database, con una cache opzionale del contesto formattato
type DBStore struct {
	db       *gorm.DB
	turns    int
	cache    cache.Cache
	cacheTTL time.Duration

	// gen cresce a ogni scrittura: un contesto letto prima non va messo in cache
	mu  sync.Mutex
	gen uint64
}

// Option configura il DBStore
type Option func(*DBStore)

// WithContextTurns imposta quanti scambi includere nel contesto
func WithContextTurns(n int) Option {
	return func(s *DBStore) {
		if n > 0 {
			s.turns = n
		}
	}
}

// WithCache collega una cache per il contesto formattato
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *DBStore) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// NewDBStore crea uno store sopra una connessione gorm già migrata
func NewDBStore(db *gorm.DB, opts ...Option) *DBStore {
	s := &DBStore{
		db:    db,
		turns: DefaultContextTurns,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetContext restituisce gli ultimi scambi, dal più vecchio al più recente
func (s *DBStore) GetContext(ctx context.Context, chatID, userID int64, topic string) (string, error) {
	topic = normalizeTopic(topic)
	key := contextKey(chatID, userID, topic)

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			return string(data), nil
		}
	}
	gen := s.generation()

	var turns []models.ConversationTurn
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ? AND topic = ?", chatID, userID, topic).
		Order("id DESC").
		Limit(s.turns).
		Find(&turns).Error
	if err != nil {
		return "", fmt.Errorf("failed to load memory: %w", err)
	}

	lines := make([]string, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		lines = append(lines, turns[i].Format())
	}
	text := strings.Join(lines, "\n")

	s.cacheContext(ctx, key, text, gen)
	return text, nil
}

func (s *DBStore) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// cacheContext salva il contesto solo se nessuna scrittura è avvenuta dopo la lettura
func (s *DBStore) cacheContext(ctx context.Context, key, text string, gen uint64) {
	if s.cache == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	if err := s.cache.Set(ctx, key, []byte(text), s.cacheTTL); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Memory cache set failed")
	}
}

// invalidate scarta le chiavi in cache e i contesti ancora in lettura
func (s *DBStore) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}

	s.mu.Lock()
	s.gen++
	s.mu.Unlock()

	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("Memory cache invalidation failed")
		}
	}
}

// Append salva uno scambio e invalida il contesto in cache
func (s *DBStore) Append(ctx context.Context, chatID, userID int64, userMessage, aiResponse, topic string) error {
	topic = normalizeTopic(topic)
	turn := models.ConversationTurn{
		ChatID:      chatID,
		UserID:      userID,
		Topic:       topic,
		UserMessage: userMessage,
		AIResponse:  aiResponse,
	}
	if err := s.db.WithContext(ctx).Create(&turn).Error; err != nil {
		return fmt.Errorf("failed to save memory: %w", err)
	}

	s.invalidate(ctx, contextKey(chatID, userID, topic))
	return nil
}

// History restituisce gli ultimi n scambi di tutti i topic, dal più vecchio.
// n <= 0 vale DefaultHistoryTurns, oltre MaxHistoryTurns viene troncato.
func (s *DBStore) History(ctx context.Context, chatID, userID int64, n int) ([]models.ConversationTurn, error) {
	if n <= 0 {
		n = DefaultHistoryTurns
	}
	n = min(n, MaxHistoryTurns)

	var turns []models.ConversationTurn
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Order("id DESC").
		Limit(n).
		Find(&turns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	slices.Reverse(turns)
	return turns, nil
}

// Clear elimina la memoria di un utente per tutti i topic
func (s *DBStore) Clear(ctx context.Context, chatID, userID int64) error {
	var topics []string
	if err := s.db.WithContext(ctx).Model(&models.ConversationTurn{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Distinct().Pluck("topic", &topics).Error; err != nil {
		return fmt.Errorf("failed to list topics: %w", err)
	}

	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Delete(&models.ConversationTurn{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear memory: %w", err)
	}

	keys := make([]string, 0, len(topics))
	for _, topic := range topics {
		keys = append(keys, contextKey(chatID, userID, topic))
	}
	s.invalidate(ctx, keys...)
	return nil
}

func normalizeTopic(topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return DefaultTopic
	}
	return topic
}

func contextKey(chatID, userID int64, topic string) string {
	return cache.Key("memory", strconv.FormatInt(chatID, 10), strconv.FormatInt(userID, 10), topic)
}

// ProfileStore legge e salva i profili utente
type ProfileStore struct {
	db *gorm.DB
}

// NewProfileStore crea uno store dei profili
func NewProfileStore(db *gorm.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// Get restituisce il profilo o ErrProfileNotFound
func (p *ProfileStore) Get(ctx context.Context, chatID, userID int64) (*models.Profile, error) {
	var profile models.Profile
	err := p.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &profile, nil
}

// Save inserisce o aggiorna il profilo
func (p *ProfileStore) Save(ctx context.Context, profile *models.Profile) error {
	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"gender", "age", "weight", "height", "goal", "diet", "updated_at"}),
		}).
		Create(profile).Error
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Facts restituisce i dati del profilo come contesto, stringa vuota se assente
func (p *ProfileStore) Facts(ctx context.Context, chatID, userID int64) (string, error) {
	profile, err := p.Get(ctx, chatID, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return profile.Facts(), nil
}
