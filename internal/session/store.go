// Package session implements SessionStore (C10): Redis-backed per-session
// rolling chat history, counters, and idle eviction. Connection handling
// follows the teacher's FalkorDBStore idiom (a shared *redis.Client over
// go-redis/v9); the graph/Cypher layer it wrapped has no role here, so this
// package talks to Redis directly as a keyed JSON blob store instead.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/observability"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

// Config mirrors config.SessionConfig.
type Config struct {
	HistoryWindowPairs int
	IdleTimeout        time.Duration
	SweepInterval      time.Duration
	KeyPrefix          string
}

// Store implements SessionStore over Redis.
type Store struct {
	client *redis.Client
	cfg    Config
	logger zerolog.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewClient creates the shared Redis connection, mirroring the teacher's
// NewFalkorDBStore connection setup.
func NewClient(addr, password string, db, poolSize int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})
}

// New creates a Store.
func New(client *redis.Client, cfg Config) *Store {
	if cfg.HistoryWindowPairs <= 0 {
		cfg.HistoryWindowPairs = 8
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "advisor:session:"
	}
	return &Store{
		client: client,
		cfg:    cfg,
		logger: observability.Logger("session"),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *Store) key(sessionID string) string {
	return s.cfg.KeyPrefix + sessionID
}

// lockFor serializes concurrent turns for the same session (spec §5); Redis
// ops on a single key are already atomic, but get-then-set round trips
// around the rolling history are not, so a per-session in-process mutex
// covers the read-modify-write.
func (s *Store) lockFor(sessionID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	if l, ok := s.locks[sessionID]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[sessionID] = l
	return l
}

func (s *Store) load(ctx context.Context, sessionID string) (*models.Session, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		// Corruption is treated as a session reset, not a fatal error (spec §7).
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("session record corrupted, resetting")
		return nil, nil
	}
	return &sess, nil
}

func (s *Store) save(ctx context.Context, sess *models.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.SessionID, err)
	}
	ttl := s.cfg.IdleTimeout
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := s.client.Set(ctx, s.key(sess.SessionID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", sess.SessionID, err)
	}
	return nil
}

// GetOrCreate returns the session for sessionID, creating it (with
// PrimaryCategory initialized to category) if this is the first turn.
func (s *Store) GetOrCreate(ctx context.Context, sessionID string, category models.Category) (*models.Session, error) {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}

	now := time.Now()
	sess = &models.Session{
		SessionID:         sessionID,
		CreatedAt:         now,
		LastActivity:      now,
		PrimaryCategory:   category,
		PerCategoryCounts: make(map[models.Category]int),
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// History returns the rolling history formatted as plain text for prompt
// assembly, one "Role: text" line per message.
func History(sess *models.Session) string {
	var out string
	for i, m := range sess.MessageWindow {
		role := "User"
		if m.Role == "bot" {
			role = "Bot"
		}
		if i > 0 {
			out += "\n"
		}
		out += fmt.Sprintf("%s: %s", role, m.Text)
	}
	return out
}

// Append records one (user, bot) exchange, updates counters and
// last_activity, and trims the rolling window to 2*HistoryWindowPairs
// entries (spec §4.5 invariant).
func (s *Store) Append(ctx context.Context, sessionID string, category models.Category, userText, botText string, processingMs int64) error {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		sess = &models.Session{
			SessionID:         sessionID,
			CreatedAt:         time.Now(),
			PerCategoryCounts: make(map[models.Category]int),
		}
	}

	now := time.Now()
	sess.LastActivity = now
	sess.PrimaryCategory = category
	sess.InteractionCount++
	if sess.PerCategoryCounts == nil {
		sess.PerCategoryCounts = make(map[models.Category]int)
	}
	sess.PerCategoryCounts[category]++
	sess.TotalProcessingMs += processingMs

	sess.MessageWindow = append(sess.MessageWindow,
		models.Message{Role: "user", Text: userText, Timestamp: now},
		models.Message{Role: "bot", Text: botText, Timestamp: now},
	)

	sess.MessageWindow = trimWindow(sess.MessageWindow, s.cfg.HistoryWindowPairs)

	return s.save(ctx, sess)
}

// trimWindow keeps only the newest 2*pairs entries of window.
func trimWindow(window []models.Message, pairs int) []models.Message {
	maxEntries := 2 * pairs
	if len(window) > maxEntries {
		return window[len(window)-maxEntries:]
	}
	return window
}

// Stats returns the SessionStats projection for a session, or
// ErrSessionNotFound if it doesn't exist.
func (s *Store) Stats(ctx context.Context, sessionID string) (models.SessionStats, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return models.SessionStats{}, err
	}
	if sess == nil {
		return models.SessionStats{}, models.NewError(models.ErrSessionNotFound, "session not found").WithDetails("session_id", sessionID)
	}
	return sess.Stats(), nil
}

// Get returns the raw Session, or nil if it doesn't exist.
func (s *Store) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.load(ctx, sessionID)
}

// Clear resets a session's rolling memory in place; persisted messages in
// MessageStore are untouched (spec §6, POST /session/{id}/clear).
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	sess.MessageWindow = nil
	return s.save(ctx, sess)
}

// ActiveSessions lists every session key currently tracked. Uses SCAN
// rather than KEYS to avoid blocking Redis on a large keyspace.
func (s *Store) ActiveSessions(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, s.cfg.KeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, s.sessionIDFromKey(iter.Val()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return ids, nil
}

// sessionIDFromKey strips the configured key prefix from a session key.
func (s *Store) sessionIDFromKey(key string) string {
	return key[len(s.cfg.KeyPrefix):]
}

// Cleanup evicts sessions idle longer than IdleTimeout. Redis TTLs already
// expire keys on their own, but a sweep lets AdminOps observe and log
// evictions instead of relying on silent key expiry (spec §4.5, §6).
func (s *Store) Cleanup(ctx context.Context) (evicted int, err error) {
	ids, err := s.ActiveSessions(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	for _, id := range ids {
		sess, err := s.load(ctx, id)
		if err != nil || sess == nil {
			continue
		}
		if now.Sub(sess.LastActivity) > s.cfg.IdleTimeout {
			if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
				s.logger.Warn().Err(err).Str("session_id", id).Msg("failed to evict idle session")
				continue
			}
			evicted++
			observability.LogEvent(s.logger, observability.EventSessionEvicted, map[string]interface{}{"session_id": id})
		}
	}
	return evicted, nil
}

// StartSweeper runs Cleanup on cfg.SweepInterval until ctx is cancelled.
// Started once at daemon startup (SPEC_FULL §7).
func (s *Store) StartSweeper(ctx context.Context) {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Cleanup(ctx)
			if err != nil {
				s.logger.Warn().Err(err).Msg("session sweep failed")
				continue
			}
			if n > 0 {
				s.logger.Info().Int("evicted", n).Msg("session sweep completed")
			}
		}
	}
}

// HealthCheck verifies the Redis connection is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("session store health check failed: %w", err)
	}
	return nil
}
