package convstore

import "errors"

// Configuration errors.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
)

// Session errors. Only these kinds leave the session manager.
var (
	// ErrConversationNotFound means the conversation has no durable record.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrUnauthorizedSessionAccess means the requester is not the recorded owner.
	ErrUnauthorizedSessionAccess = errors.New("unauthorized session access")

	// ErrCacheReadCorruption marks a cache entry that failed to decode or lacks required fields.
	// It is recovered by re-materializing and never returned to callers of the manager.
	ErrCacheReadCorruption = errors.New("session cache entry corrupted")

	// ErrCacheWrite marks a failed put/delete against the cache backend. Logged and swallowed.
	ErrCacheWrite = errors.New("session cache write failed")

	// ErrCandidateService marks a failed candidate ranking. Degrades to an empty list.
	ErrCandidateService = errors.New("candidate service failure")

	// ErrInference marks a failed inference call. Fatal to the turn.
	ErrInference = errors.New("inference failed")
)
