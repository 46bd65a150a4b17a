package session

import (
	"context"
	"time"

	"github.com/creastat/convstore"
)

const (
	// KeyPrefix prefixes every session cache key.
	KeyPrefix = "session:conv:"
	// DefaultTTL is the lifetime of a cache entry after its last write.
	DefaultTTL = 3600 * time.Second
)

// Key returns the cache key for a conversation.
func Key(conversationID string) string {
	return KeyPrefix + conversationID
}

// Cache is a TTL-keyed volatile store of serialized session snapshots.
type Cache interface {
	// Get returns the snapshot stored under id.
	// Returns nil if the entry is absent or expired (not an error).
	Get(ctx context.Context, id string) ([]byte, error)

	// Put overwrites the entry and restarts its TTL. A non-positive ttl uses the store default.
	Put(ctx context.Context, id string, snapshot []byte, ttl time.Duration) error

	// Delete removes the entry. Deleting an absent entry is not an error.
	Delete(ctx context.Context, id string) error

	// Touch resets the entry's expiry without rewriting it.
	Touch(ctx context.Context, id string, ttl time.Duration) error

	// Close closes the store and releases any resources.
	Close() error
}

// SwapCache is implemented by caches that can replace an entry only if it still holds
// the bytes the caller read. A nil old value means the entry must be absent.
type SwapCache interface {
	Cache

	// CompareAndSwap stores snapshot if the current value equals old.
	// Returns false without error when the entry changed underneath.
	CompareAndSwap(ctx context.Context, id string, old, snapshot []byte, ttl time.Duration) (bool, error)
}

// LogService is the durable, append-only store of conversations and messages.
type LogService interface {
	// GetConversation returns the metadata record, or ErrConversationNotFound.
	GetConversation(ctx context.Context, id string) (*convstore.Conversation, error)

	// ListMessages returns every message of the conversation in chronological order.
	ListMessages(ctx context.Context, id string) ([]convstore.LogEntry, error)

	// SetTitleIfUntitled atomically sets the title if the stored one is the sentinel.
	// Reports whether the title was written.
	SetTitleIfUntitled(ctx context.Context, id, title string) (bool, error)

	// TouchLastModified bumps the conversation's last-modified timestamp.
	TouchLastModified(ctx context.Context, id string) error
}

// ProfileSource returns the response-shaping attributes of a user.
type ProfileSource interface {
	GetProfile(ctx context.Context, handle string) (convstore.Profile, error)
}

// CandidateService ranks recommendation candidates for a user.
type CandidateService interface {
	Rank(ctx context.Context, handle string) ([]convstore.Candidate, error)
}

// InferenceService produces the assistant reply for one turn.
type InferenceService interface {
	Respond(ctx context.Context, req convstore.InferenceRequest) (*convstore.InferenceReply, error)
}
