package vectorstore

import "context"

// VectorStore is a technology-agnostic interface over problem embeddings.
// Implementations can use Qdrant, chromem-go, Weaviate, etc.
type VectorStore interface {
	// Search performs vector similarity search with optional filtering.
	Search(ctx context.Context, vector []float32, filter SearchFilter, limit int) ([]SearchResult, error)

	// Recommend returns the points most similar to the given positive examples.
	// Positive IDs that are not in the store are ignored.
	Recommend(ctx context.Context, positiveIDs []string, filter SearchFilter, limit int) ([]SearchResult, error)

	// Close releases any resources held by the vector store.
	Close() error
}

// SearchFilter defines filtering options for vector search.
type SearchFilter struct {
	// Metadata filters results by payload key-value pairs.
	Metadata map[string]any

	// ExcludeIDs removes these points from the results.
	ExcludeIDs []string

	// MinScore filters results below this similarity threshold (0.0-1.0).
	MinScore float32
}

// SearchResult represents a single result from vector similarity search.
type SearchResult struct {
	// ID is the unique identifier of the result.
	ID string

	// Score is the similarity score (higher is more similar).
	Score float32

	// Content is the text associated with this vector (the problem title).
	Content string

	// Metadata contains additional key-value pairs.
	Metadata map[string]any
}
