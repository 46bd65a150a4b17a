package session

import (
	"context"
	"log/slog"
	"time"
)

// Option is a functional option for configuring a Manager.
type Option func(*managerConfig)

// managerConfig holds configuration for the session manager.
type managerConfig struct {
	profiles   ProfileSource
	candidates CandidateService
	ttl        time.Duration
	touchOnHit bool
	serialize  bool
	logger     *slog.Logger
}

func defaultManagerConfig() *managerConfig {
	return &managerConfig{
		ttl:        DefaultTTL,
		touchOnHit: true,
		serialize:  true,
		logger:     slog.Default(),
	}
}

// WithProfileSource sets where owner profiles are read from during materialization.
func WithProfileSource(p ProfileSource) Option {
	return func(c *managerConfig) {
		c.profiles = p
	}
}

// WithCandidateService sets the candidate ranker used during materialization.
func WithCandidateService(cs CandidateService) Option {
	return func(c *managerConfig) {
		c.candidates = cs
	}
}

// WithTTL sets the TTL applied to every cache write.
func WithTTL(ttl time.Duration) Option {
	return func(c *managerConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithTouchOnHit controls whether a cache hit resets the entry's TTL.
func WithTouchOnHit(enabled bool) Option {
	return func(c *managerConfig) {
		c.touchOnHit = enabled
	}
}

// WithTurnSerialization controls whether turns on the same conversation run one at a time
// within this process.
func WithTurnSerialization(enabled bool) Option {
	return func(c *managerConfig) {
		c.serialize = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *managerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// TurnOption configures a single RunTurn call.
type TurnOption func(*turnConfig)

type turnConfig struct {
	commit func(context.Context, *TurnResult) error
}

// WithCommit runs fn after inference succeeds and before the session is re-persisted,
// while the conversation is still held. An error from fn aborts the turn and drops the
// cache entry so the next access rebuilds it from the log.
func WithCommit(fn func(ctx context.Context, res *TurnResult) error) TurnOption {
	return func(c *turnConfig) {
		c.commit = fn
	}
}
