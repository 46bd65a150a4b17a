package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/creastat/convstore/candidates"
	"github.com/creastat/convstore/chat"
	"github.com/creastat/convstore/config"
	"github.com/creastat/convstore/inference"
	"github.com/creastat/convstore/inference/langchain"
	inferenceopenai "github.com/creastat/convstore/inference/openai"
	"github.com/creastat/convstore/session"
	"github.com/creastat/convstore/session/drivers"
	"github.com/creastat/convstore/solvedac"
	"github.com/creastat/convstore/sqlstore"
	"github.com/creastat/convstore/supabase"
	"github.com/creastat/convstore/vectorstore"
	"github.com/creastat/convstore/vectorstore/chromem"
	"github.com/creastat/convstore/vectorstore/qdrant"
	"github.com/redis/go-redis/v9"
	"github.com/tmc/langchaingo/llms/ollama"
)

// speechKeyPrefix keys speech payloads by assistant message ID.
const speechKeyPrefix = "tts:"

// app holds every wired component of one process.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    chat.Store
	sql      *sqlstore.Store
	sessions session.SwapCache
	vectors  vectorstore.VectorStore
	problems *chromem.Store
	manager  *session.Manager
	chat     *chat.Service
	closers  []func() error
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) error {
	profiles, err := a.buildStore(ctx)
	if err != nil {
		return err
	}

	speech, err := a.buildCaches()
	if err != nil {
		return err
	}

	infer, err := a.buildInference()
	if err != nil {
		return err
	}

	opts := []session.Option{
		session.WithProfileSource(profiles),
		session.WithTTL(a.cfg.Cache.TTL),
		session.WithTouchOnHit(a.cfg.Cache.TouchOnHit),
		session.WithTurnSerialization(a.cfg.Cache.SerializeTurns),
		session.WithLogger(a.logger),
	}
	ranker, err := a.buildRanker()
	if err != nil {
		return err
	}
	if ranker != nil {
		opts = append(opts, session.WithCandidateService(ranker))
	}

	a.manager, err = session.NewManager(a.sessions, a.store, infer, opts...)
	if err != nil {
		return err
	}
	a.chat, err = chat.NewService(a.store, a.manager,
		chat.WithSpeechCache(speech, a.cfg.Speech.TTL),
		chat.WithLogger(a.logger),
	)
	return err
}

// buildStore opens the conversation log. Both backends double as the profile source.
func (a *app) buildStore(ctx context.Context) (session.ProfileSource, error) {
	switch a.cfg.Store.Backend {
	case "supabase":
		c, err := supabase.New(supabase.Config{
			URL:             a.cfg.Store.SupabaseURL,
			APIKey:          a.cfg.Store.SupabaseKey,
			ProfileCacheTTL: a.cfg.Store.ProfileCacheTTL,
		})
		if err != nil {
			return nil, err
		}
		a.store = c
		a.closers = append(a.closers, c.Close)
		return c, nil

	default:
		s, err := sqlstore.Open(sqlstore.Dialect(a.cfg.Store.Driver), a.cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.sql = s
		a.store = s
		return s, nil
	}
}

// buildCaches creates the session cache and the speech payload cache on the same backend.
func (a *app) buildCaches() (session.Cache, error) {
	storeType := drivers.StoreType(a.cfg.Cache.Driver)
	var base []drivers.Option
	if storeType == drivers.StoreTypeRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Cache.RedisAddr,
			Password: a.cfg.Cache.RedisPassword,
			DB:       a.cfg.Cache.RedisDB,
		})
		// Closed by the session cache; the speech cache shares it.
		base = append(base, drivers.WithRedisClient(client))
	}

	sessions, err := drivers.NewCache(storeType, append(base, drivers.WithTTL(a.cfg.Cache.TTL))...)
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	a.sessions = sessions

	speech, err := drivers.NewCache(storeType, append(base,
		drivers.WithKeyPrefix(speechKeyPrefix),
		drivers.WithTTL(a.cfg.Speech.TTL),
	)...)
	if err != nil {
		return nil, fmt.Errorf("speech cache: %w", err)
	}
	return speech, nil
}

// buildRanker returns nil when candidate ranking is disabled.
func (a *app) buildRanker() (*candidates.Ranker, error) {
	c := a.cfg.Candidates
	switch c.Backend {
	case "none":
		return nil, nil
	case "qdrant":
		q, err := qdrant.New(qdrant.Config{URL: c.QdrantURL, CollectionName: c.Collection, APIKey: c.QdrantAPIKey})
		if err != nil {
			return nil, err
		}
		a.vectors = q
	default:
		s, err := chromem.New(chromem.Config{Dir: c.ChromemDir, CollectionName: c.Collection})
		if err != nil {
			return nil, err
		}
		a.problems = s
		a.vectors = s
	}
	a.closers = append(a.closers, a.vectors.Close)

	history := solvedac.New(solvedac.WithBaseURL(c.SolvedACURL), solvedac.WithRateLimit(c.RateLimit, 1))
	return candidates.NewRanker(history, a.vectors,
		candidates.WithLimit(c.Limit),
		candidates.WithLogger(a.logger),
	)
}

func (a *app) buildInference() (session.InferenceService, error) {
	c := a.cfg.Inference
	window := inference.Window{TokenLimit: c.TokenLimit, MessageLimit: c.MessageLimit}

	switch c.Backend {
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(c.Model)}
		if c.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(c.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama model: %w", err)
		}
		return langchain.New(llm,
			langchain.WithTemperature(c.Temperature),
			langchain.WithWindow(window),
			langchain.WithLogger(a.logger),
		)
	default:
		return inferenceopenai.New(inferenceopenai.Config{
			APIKey:      c.APIKey,
			BaseURL:     c.BaseURL,
			Model:       c.Model,
			Temperature: float32(c.Temperature),
			Window:      window,
		}, a.logger)
	}
}

// Close releases components in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	if a.sessions != nil {
		errs = append(errs, a.sessions.Close())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
