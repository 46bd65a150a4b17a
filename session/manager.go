package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/creastat/convstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("convstore.session")

// TurnResult is what a caller gets back from one turn.
type TurnResult struct {
	Text     string
	Speech   string
	Keywords []string
}

// Manager obtains sessions from the cache or the log, drives inference turns and keeps
// the cache and the log in agreement about the conversation title.
type Manager struct {
	cache        Cache
	logs         LogService
	inference    InferenceService
	materializer *Materializer
	ttl          time.Duration
	touchOnHit   bool
	serialize    bool
	locks        *keyLock
	flight       singleflight.Group
	logger       *slog.Logger
}

// NewManager creates a session manager.
func NewManager(cache Cache, logs LogService, inference InferenceService, opts ...Option) (*Manager, error) {
	if cache == nil || logs == nil || inference == nil {
		return nil, fmt.Errorf("%w: cache, log service and inference service are required", convstore.ErrInvalidConfig)
	}

	cfg := defaultManagerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &Manager{
		cache:        cache,
		logs:         logs,
		inference:    inference,
		materializer: NewMaterializer(logs, cfg.profiles, cfg.candidates, cfg.logger),
		ttl:          cfg.ttl,
		touchOnHit:   cfg.touchOnHit,
		serialize:    cfg.serialize,
		locks:        newKeyLock(),
		logger:       cfg.logger,
	}, nil
}

// ObtainSession returns the session of a conversation for requester, from the cache
// when a valid entry exists and by materialization otherwise.
func (m *Manager) ObtainSession(ctx context.Context, conversationID, requester string) (*Session, error) {
	ctx, span := tracer.Start(ctx, "Manager.ObtainSession",
		trace.WithAttributes(attribute.String("conversation_id", conversationID)))
	defer span.End()

	s, _, err := m.obtain(ctx, conversationID, requester)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return s, nil
}

// RunTurn appends message to the conversation's session, asks the inference service for
// a reply, reconciles the derived title with the log and re-persists the session.
// Nothing is committed for a turn whose inference step fails.
func (m *Manager) RunTurn(ctx context.Context, conversationID, requester, message string, opts ...TurnOption) (*TurnResult, error) {
	start := time.Now()
	defer func() { turnDuration.Observe(time.Since(start).Seconds()) }()

	ctx, span := tracer.Start(ctx, "Manager.RunTurn",
		trace.WithAttributes(attribute.String("conversation_id", conversationID)))
	defer span.End()

	var cfg turnConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	res, err := m.runTurn(ctx, conversationID, requester, message, cfg)
	switch {
	case err == nil:
		turns.WithLabelValues("ok").Inc()
	case errors.Is(err, convstore.ErrUnauthorizedSessionAccess), errors.Is(err, convstore.ErrConversationNotFound):
		turns.WithLabelValues("rejected").Inc()
	default:
		turns.WithLabelValues("failed").Inc()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (m *Manager) runTurn(ctx context.Context, conversationID, requester, message string, cfg turnConfig) (*TurnResult, error) {
	if m.serialize {
		unlock, err := m.locks.Lock(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("waiting for conversation %s: %w", conversationID, err)
		}
		defer unlock()
	}

	s, raw, err := m.obtain(ctx, conversationID, requester)
	if err != nil {
		return nil, err
	}

	wantTitle := convstore.IsUntitled(s.Title)
	s.AddTurn(convstore.RoleUser, message)

	reply, err := m.inference.Respond(ctx, convstore.InferenceRequest{
		ConversationID: conversationID,
		Turns:          s.Turns,
		Candidates:     s.Candidates,
		Profile:        s.Profile,
		Message:        message,
		WantTitle:      wantTitle,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: conversation %s: %v", convstore.ErrInference, conversationID, err)
	}
	if reply == nil {
		return nil, fmt.Errorf("%w: conversation %s: empty reply", convstore.ErrInference, conversationID)
	}

	res := &TurnResult{
		Text:     reply.Text,
		Speech:   reply.Speech,
		Keywords: reply.Keywords,
	}
	if cfg.commit != nil {
		if err := cfg.commit(ctx, res); err != nil {
			// The commit may have partially landed in the log.
			m.DeleteSession(ctx, conversationID)
			return nil, fmt.Errorf("commit turn for conversation %s: %w", conversationID, err)
		}
	}

	s.AddTurn(convstore.RoleAssistant, reply.Text)

	if derived := strings.TrimSpace(reply.Title); wantTitle && derived != "" && !convstore.IsUntitled(derived) {
		s.Title = derived
		m.reconcileTitle(ctx, s)
	}

	m.persist(ctx, s, raw)

	if err := m.logs.TouchLastModified(ctx, conversationID); err != nil {
		m.logger.Warn("failed to touch conversation last-modified", "conversation_id", conversationID, "error", err)
	}

	return res, nil
}

// DeleteSession removes the cache entry of a conversation. Failures are logged and swallowed.
func (m *Manager) DeleteSession(ctx context.Context, conversationID string) {
	if err := m.cache.Delete(ctx, conversationID); err != nil {
		cacheWrites.WithLabelValues("error").Inc()
		m.logger.Warn("failed to delete cached session",
			"conversation_id", conversationID, "error", fmt.Errorf("%w: %v", convstore.ErrCacheWrite, err))
		return
	}
	m.logger.Debug("cached session deleted", "conversation_id", conversationID)
}

// obtain returns the session and the snapshot bytes the cache is believed to hold.
func (m *Manager) obtain(ctx context.Context, conversationID, requester string) (*Session, []byte, error) {
	s, raw, hit, err := m.lookup(ctx, conversationID, requester)
	if err != nil {
		return nil, nil, err
	}
	if hit {
		return s, raw, nil
	}
	return m.materialize(ctx, conversationID, requester, raw)
}

// lookup reads the cache. Backend errors and corrupt entries count as misses; for a
// corrupt entry the unreadable bytes are still returned.
func (m *Manager) lookup(ctx context.Context, conversationID, requester string) (*Session, []byte, bool, error) {
	raw, err := m.cache.Get(ctx, conversationID)
	if err != nil {
		cacheLookups.WithLabelValues("error").Inc()
		m.logger.Warn("session cache read failed, rebuilding from log", "conversation_id", conversationID, "error", err)
		return nil, nil, false, nil
	}
	if raw == nil {
		cacheLookups.WithLabelValues("miss").Inc()
		return nil, nil, false, nil
	}

	s, err := Unmarshal(conversationID, raw)
	if err != nil {
		cacheLookups.WithLabelValues("corrupt").Inc()
		m.logger.Warn("cached session unreadable, rebuilding from log", "conversation_id", conversationID, "error", err)
		return nil, raw, false, nil
	}
	cacheLookups.WithLabelValues("hit").Inc()

	if s.OwnerHandle != requester {
		return nil, nil, false, fmt.Errorf("%w: conversation %s", convstore.ErrUnauthorizedSessionAccess, conversationID)
	}

	if m.touchOnHit {
		if err := m.cache.Touch(ctx, conversationID, m.ttl); err != nil {
			m.logger.Warn("failed to refresh session TTL", "conversation_id", conversationID, "error", err)
		}
	}

	m.logger.Debug("session loaded from cache", "conversation_id", conversationID)
	return s, raw, true, nil
}

type materialized struct {
	session *Session
	raw     []byte
}

// materialize rebuilds the session and writes it to the cache. Concurrent calls for the
// same conversation and requester share one rebuild; each caller gets its own copy and
// stops waiting when its own context ends. seen is the entry the cache lookup found, nil
// on a plain miss. The returned bytes are nil when the rebuilt snapshot did not land.
func (m *Manager) materialize(ctx context.Context, conversationID, requester string, seen []byte) (*Session, []byte, error) {
	shared := context.WithoutCancel(ctx)
	ch := m.flight.DoChan(conversationID+"\x00"+requester, func() (any, error) {
		s, err := m.materializer.Materialize(shared, conversationID, requester)
		if err != nil {
			return nil, err
		}
		raw, err := Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("failed to encode session %s: %w", conversationID, err)
		}
		if !m.store(shared, conversationID, seen, raw) {
			raw = nil
		}
		return &materialized{session: s, raw: raw}, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, nil, res.Err
	}

	mat := res.Val.(*materialized)
	return mat.session.Clone(), mat.raw, nil
}

// store writes a freshly rebuilt snapshot. With a SwapCache it only replaces the entry the
// lookup saw, so a slow rebuild never overwrites a snapshot written by a newer turn.
// Reports whether the snapshot is now the cached value.
func (m *Manager) store(ctx context.Context, conversationID string, seen, raw []byte) bool {
	sc, ok := m.cache.(SwapCache)
	if !ok {
		return m.put(ctx, conversationID, raw)
	}

	swapped, err := sc.CompareAndSwap(ctx, conversationID, seen, raw, m.ttl)
	if err != nil {
		cacheWrites.WithLabelValues("error").Inc()
		m.logger.Warn("failed to save session", "conversation_id", conversationID,
			"error", fmt.Errorf("%w: %v", convstore.ErrCacheWrite, err))
		return false
	}
	if !swapped {
		cacheWrites.WithLabelValues("conflict").Inc()
		m.logger.Debug("session cached concurrently, keeping newer entry", "conversation_id", conversationID)
		return false
	}
	cacheWrites.WithLabelValues("ok").Inc()
	m.logger.Debug("session saved", "conversation_id", conversationID, "ttl", m.ttl)
	return true
}

// reconcileTitle mirrors a freshly derived title to the log with a conditional write.
// When the log already holds a real title the session adopts it, and when the write
// fails the session falls back to the sentinel so a later turn retries.
func (m *Manager) reconcileTitle(ctx context.Context, s *Session) {
	applied, err := m.logs.SetTitleIfUntitled(ctx, s.ConversationID, s.Title)
	if err != nil {
		m.logger.Warn("failed to store derived title", "conversation_id", s.ConversationID, "error", err)
		s.Title = convstore.UntitledTitle
		return
	}
	if applied {
		m.logger.Debug("conversation titled", "conversation_id", s.ConversationID, "title", s.Title)
		return
	}

	conv, err := m.logs.GetConversation(ctx, s.ConversationID)
	if err != nil || conv == nil {
		m.logger.Warn("failed to re-read conversation title", "conversation_id", s.ConversationID, "error", err)
		s.Title = convstore.UntitledTitle
		return
	}
	s.Title = conv.Title
}

// persist writes the updated session back. With a SwapCache the write only lands if the
// entry still holds old, where nil old means the entry must be absent; otherwise the
// entry is dropped so the next access rebuilds it.
func (m *Manager) persist(ctx context.Context, s *Session, old []byte) {
	raw, err := Marshal(s)
	if err != nil {
		m.logger.Error("failed to encode session", "conversation_id", s.ConversationID, "error", err)
		return
	}

	sc, ok := m.cache.(SwapCache)
	if !ok {
		m.put(ctx, s.ConversationID, raw)
		return
	}

	swapped, err := sc.CompareAndSwap(ctx, s.ConversationID, old, raw, m.ttl)
	if err != nil {
		cacheWrites.WithLabelValues("error").Inc()
		m.logger.Warn("failed to save session", "conversation_id", s.ConversationID,
			"error", fmt.Errorf("%w: %v", convstore.ErrCacheWrite, err))
		return
	}
	if !swapped {
		cacheWrites.WithLabelValues("conflict").Inc()
		m.logger.Warn("cached session changed concurrently, invalidating", "conversation_id", s.ConversationID)
		m.DeleteSession(ctx, s.ConversationID)
		return
	}
	cacheWrites.WithLabelValues("ok").Inc()
	m.logger.Debug("session saved", "conversation_id", s.ConversationID, "ttl", m.ttl)
}

// put writes a snapshot, swallowing failures.
func (m *Manager) put(ctx context.Context, conversationID string, raw []byte) bool {
	if err := m.cache.Put(ctx, conversationID, raw, m.ttl); err != nil {
		cacheWrites.WithLabelValues("error").Inc()
		m.logger.Warn("failed to save session", "conversation_id", conversationID,
			"error", fmt.Errorf("%w: %v", convstore.ErrCacheWrite, err))
		return false
	}
	cacheWrites.WithLabelValues("ok").Inc()
	m.logger.Debug("session saved", "conversation_id", conversationID, "ttl", m.ttl)
	return true
}
