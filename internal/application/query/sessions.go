package query

import (
	"log/slog"
	"sync"
	"time"

	"github.com/planboard/planboard-core/internal/domain/project"
	"github.com/planboard/planboard-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PER-CALLER AGGREGATORS
// Правило "побеждает последний вызов" действует внутри одного вызывающего.
// Каждая сессия получает свой агрегатор со своим счётчиком, поэтому запрос
// одного клиента не отменяет доску другого. Общий опубликованный агрегат
// принадлежит планировщику и сессиями не затрагивается.
// ══════════════════════════════════════════════════════════════════════════════

// ComputerProvider выдаёт агрегатор для вызывающего.
type ComputerProvider interface {
	For(session string) ProgressComputer
}

// AggregateReader отдаёт последний опубликованный агрегат.
type AggregateReader interface {
	Current() Aggregate
}

// SessionConfig содержит настройки реестра сессий.
type SessionConfig struct {
	// TTL - сессия без вызовов дольше TTL забывается.
	TTL time.Duration

	// MaxSessions - при переполнении вытесняется самая давняя сессия.
	MaxSessions int
}

// DefaultSessionConfig возвращает конфигурацию по умолчанию.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{TTL: 30 * time.Minute, MaxSessions: 1024}
}

type sessionEntry struct {
	aggregator *ProgressAggregator
	lastUsed   time.Time
}

// Sessions - реестр агрегаторов по ключу сессии. Агрегаторы сессий ничего не
// публикуют: ни событий, ни общего хранилища.
type Sessions struct {
	source  project.TaskSource
	logger  *slog.Logger
	config  AggregatorConfig
	limits  SessionConfig
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]*sessionEntry
}

// NewSessions создаёт реестр сессий.
func NewSessions(source project.TaskSource, log *slog.Logger, config AggregatorConfig, limits SessionConfig) *Sessions {
	defaults := DefaultSessionConfig()
	if limits.TTL <= 0 {
		limits.TTL = defaults.TTL
	}
	if limits.MaxSessions <= 0 {
		limits.MaxSessions = defaults.MaxSessions
	}
	return &Sessions{
		source:  source,
		logger:  logger.OrDefault(log),
		config:  config,
		limits:  limits,
		now:     time.Now,
		entries: make(map[string]*sessionEntry),
	}
}

// For возвращает агрегатор сессии, создавая его при первом обращении.
// Пустой ключ означает разовый вызов: агрегатор новый и не запоминается.
func (s *Sessions) For(session string) ProgressComputer {
	if session == "" {
		return s.newAggregator(slog.String("session", "one-shot"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictExpiredLocked(now)

	entry, ok := s.entries[session]
	if !ok {
		if len(s.entries) >= s.limits.MaxSessions {
			s.evictOldestLocked()
		}
		entry = &sessionEntry{aggregator: s.newAggregator(slog.String("session", session))}
		s.entries[session] = entry
	}
	entry.lastUsed = now
	return entry.aggregator
}

// Len возвращает число живых сессий.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Sessions) newAggregator(attr slog.Attr) *ProgressAggregator {
	return NewProgressAggregator(s.source, nil, s.logger.With(attr), s.config)
}

func (s *Sessions) evictExpiredLocked(now time.Time) {
	for key, entry := range s.entries {
		if now.Sub(entry.lastUsed) > s.limits.TTL {
			delete(s.entries, key)
		}
	}
}

func (s *Sessions) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, entry := range s.entries {
		if oldestKey == "" || entry.lastUsed.Before(oldest) {
			oldestKey, oldest = key, entry.lastUsed
		}
	}
	delete(s.entries, oldestKey)
}

// SingleComputer отдаёт один и тот же агрегатор любому вызывающему.
// Подходит для однопользовательских сред: CLI и тестов.
func SingleComputer(c ProgressComputer) ComputerProvider {
	return singleComputer{c: c}
}

type singleComputer struct{ c ProgressComputer }

func (s singleComputer) For(string) ProgressComputer { return s.c }
