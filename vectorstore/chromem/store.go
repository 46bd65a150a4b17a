package chromem

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"sync"

	"github.com/creastat/convstore/vectorstore"
	chromem "github.com/philippgille/chromem-go"
)

// DefaultCollection is the collection problems are indexed in.
const DefaultCollection = "problems"

// Config holds chromem-go configuration.
type Config struct {
	// Dir persists the database on disk. Empty keeps it in memory.
	Dir string

	// CollectionName is the name of the problem collection.
	CollectionName string

	// EmbeddingFunc embeds problems indexed without a vector. Optional.
	EmbeddingFunc chromem.EmbeddingFunc
}

// Problem is one indexable recommendation target.
type Problem struct {
	ID     string
	Title  string
	Level  int
	Vector []float32
}

// Store implements vectorstore.VectorStore over an embedded chromem-go database.
type Store struct {
	mu  sync.RWMutex
	db  *chromem.DB
	col *chromem.Collection
}

// New creates (or opens) the store.
func New(cfg Config) (*Store, error) {
	name := cfg.CollectionName
	if name == "" {
		name = DefaultCollection
	}

	var db *chromem.DB
	if cfg.Dir == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			return nil, fmt.Errorf("create vectorstore dir: %w", err)
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.Dir, false)
		if err != nil {
			return nil, fmt.Errorf("open vectorstore: %w", err)
		}
	}

	col, err := db.GetOrCreateCollection(name, nil, cfg.EmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("open collection %q: %w", name, err)
	}
	return &Store{db: db, col: col}, nil
}

// Upsert indexes (or re-indexes) problems.
func (s *Store) Upsert(ctx context.Context, problems ...Problem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range problems {
		if p.ID == "" {
			return errors.New("problem id is required")
		}
		content := p.Title
		if content == "" {
			content = p.ID
		}
		doc := chromem.Document{
			ID:        p.ID,
			Content:   content,
			Embedding: p.Vector,
			Metadata: map[string]string{
				"title": p.Title,
				"level": strconv.Itoa(p.Level),
			},
		}
		if err := s.col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("index problem %s: %w", p.ID, err)
		}
	}
	return nil
}

// Count returns the number of indexed problems.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.col.Count()
}

// Search implements vectorstore.VectorStore.
func (s *Store) Search(ctx context.Context, vector []float32, filter vectorstore.SearchFilter, limit int) ([]vectorstore.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.search(ctx, vector, filter, limit)
}

// Recommend implements vectorstore.VectorStore by querying with the normalized mean of
// the positive examples' embeddings.
func (s *Store) Recommend(ctx context.Context, positiveIDs []string, filter vectorstore.SearchFilter, limit int) ([]vectorstore.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mean []float32
	found := 0
	for _, id := range positiveIDs {
		doc, err := s.col.GetByID(ctx, id)
		if err != nil || len(doc.Embedding) == 0 {
			continue
		}
		if mean == nil {
			mean = make([]float32, len(doc.Embedding))
		}
		if len(doc.Embedding) != len(mean) {
			continue
		}
		for i, v := range doc.Embedding {
			mean[i] += v
		}
		found++
	}
	if found == 0 {
		return []vectorstore.SearchResult{}, nil
	}

	exclude := append(slices.Clone(filter.ExcludeIDs), positiveIDs...)
	filter.ExcludeIDs = exclude
	return s.search(ctx, normalize(mean), filter, limit)
}

func (s *Store) search(ctx context.Context, vector []float32, filter vectorstore.SearchFilter, limit int) ([]vectorstore.SearchResult, error) {
	if limit <= 0 {
		return []vectorstore.SearchResult{}, nil
	}
	count := s.col.Count()
	if count == 0 {
		return []vectorstore.SearchResult{}, nil
	}

	// Over-fetch so excluded and filtered-out points do not eat into the limit.
	n := min(limit+len(filter.ExcludeIDs), count)
	if len(filter.Metadata) > 0 {
		n = count
	}

	res, err := s.col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query failed: %w", err)
	}

	results := make([]vectorstore.SearchResult, 0, min(limit, len(res)))
	for _, r := range res {
		if slices.Contains(filter.ExcludeIDs, r.ID) {
			continue
		}
		if filter.MinScore > 0 && r.Similarity < filter.MinScore {
			continue
		}
		if !matches(r.Metadata, filter.Metadata) {
			continue
		}
		results = append(results, toResult(r))
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// Close implements vectorstore.VectorStore. The embedded database holds no connections.
func (s *Store) Close() error {
	return nil
}

func toResult(r chromem.Result) vectorstore.SearchResult {
	result := vectorstore.SearchResult{
		ID:       r.ID,
		Score:    r.Similarity,
		Content:  r.Metadata["title"],
		Metadata: make(map[string]any, len(r.Metadata)),
	}
	for k, v := range r.Metadata {
		if k == "title" {
			continue
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			result.Metadata[k] = n
			continue
		}
		result.Metadata[k] = v
	}
	return result
}

func matches(metadata map[string]string, want map[string]any) bool {
	for k, v := range want {
		if metadata[k] != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// Compile-time check that Store implements VectorStore.
var _ vectorstore.VectorStore = (*Store)(nil)
