// Package candidates ranks recommendation candidates from a user's solved history.
package candidates

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/creastat/convstore"
	"github.com/creastat/convstore/session"
	"github.com/creastat/convstore/vectorstore"
)

// DefaultLimit is the number of candidates ranked per user.
const DefaultLimit = 20

// HistorySource returns the IDs of problems a user has solved.
type HistorySource interface {
	Solved(ctx context.Context, handle string) ([]string, error)
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithLimit sets how many candidates are returned.
func WithLimit(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.limit = n
		}
	}
}

// WithMinScore drops candidates below this similarity.
func WithMinScore(score float32) Option {
	return func(r *Ranker) {
		r.minScore = score
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Ranker) {
		if l != nil {
			r.logger = l
		}
	}
}

// Ranker implements session.CandidateService. Unsolved problems closest to the user's
// solved set rank first.
type Ranker struct {
	history  HistorySource
	store    vectorstore.VectorStore
	limit    int
	minScore float32
	logger   *slog.Logger
}

// NewRanker creates a ranker.
func NewRanker(history HistorySource, store vectorstore.VectorStore, opts ...Option) (*Ranker, error) {
	if history == nil || store == nil {
		return nil, fmt.Errorf("%w: ranker needs a history source and a vector store", convstore.ErrInvalidConfig)
	}
	r := &Ranker{
		history: history,
		store:   store,
		limit:   DefaultLimit,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Rank implements session.CandidateService.
func (r *Ranker) Rank(ctx context.Context, handle string) ([]convstore.Candidate, error) {
	solved, err := r.history.Solved(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("load solved history for %s: %w", handle, err)
	}
	if len(solved) == 0 {
		r.logger.Debug("no solved history, nothing to rank", "user", handle)
		return []convstore.Candidate{}, nil
	}

	results, err := r.store.Recommend(ctx, solved, vectorstore.SearchFilter{
		ExcludeIDs: solved,
		MinScore:   r.minScore,
	}, r.limit)
	if err != nil {
		return nil, fmt.Errorf("recommend for %s: %w", handle, err)
	}

	out := make([]convstore.Candidate, 0, len(results))
	for _, res := range results {
		out = append(out, convstore.Candidate{
			ID:    res.ID,
			Title: res.Content,
			Level: level(res.Metadata["level"]),
			Score: res.Score,
		})
	}
	r.logger.Debug("ranked candidates", "user", handle, "solved", len(solved), "candidates", len(out))
	return out, nil
}

func level(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

var _ session.CandidateService = (*Ranker)(nil)
