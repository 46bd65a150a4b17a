package session

import (
	"encoding/json"
	"fmt"

	"github.com/creastat/convstore"
)

// snapshot is the wire form of a Session. Pointer fields detect absent keys.
type snapshot struct {
	ConversationID *string                `json:"conversation_id"`
	OwnerHandle    *string                `json:"owner_handle"`
	Profile        *convstore.Profile     `json:"profile,omitempty"`
	Title          *string                `json:"title"`
	Turns          *[]convstore.Turn      `json:"turns"`
	Candidates     *[]convstore.Candidate `json:"candidates"`
}

// Marshal serializes s into a cache snapshot.
func Marshal(s *Session) ([]byte, error) {
	turns := s.Turns
	if turns == nil {
		turns = []convstore.Turn{}
	}
	candidates := s.Candidates
	if candidates == nil {
		candidates = []convstore.Candidate{}
	}
	profile := s.Profile
	return json.Marshal(snapshot{
		ConversationID: &s.ConversationID,
		OwnerHandle:    &s.OwnerHandle,
		Profile:        &profile,
		Title:          &s.Title,
		Turns:          &turns,
		Candidates:     &candidates,
	})
}

// Unmarshal decodes a cache snapshot stored under conversationID.
// Malformed JSON, a missing required field, an empty owner, an unknown role or a
// conversation id that does not match the key all yield ErrCacheReadCorruption.
// Missing fields are never patched with defaults.
func Unmarshal(conversationID string, data []byte) (*Session, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", convstore.ErrCacheReadCorruption, err)
	}

	switch {
	case snap.ConversationID == nil:
		return nil, missingField("conversation_id")
	case snap.OwnerHandle == nil:
		return nil, missingField("owner_handle")
	case snap.Title == nil:
		return nil, missingField("title")
	case snap.Turns == nil:
		return nil, missingField("turns")
	case snap.Candidates == nil:
		return nil, missingField("candidates")
	}

	if *snap.ConversationID != conversationID {
		return nil, fmt.Errorf("%w: snapshot for %q stored under %q",
			convstore.ErrCacheReadCorruption, *snap.ConversationID, conversationID)
	}
	if *snap.OwnerHandle == "" {
		return nil, fmt.Errorf("%w: empty owner_handle", convstore.ErrCacheReadCorruption)
	}
	for i, t := range *snap.Turns {
		if !t.Role.Valid() {
			return nil, fmt.Errorf("%w: turn %d has unknown role %q", convstore.ErrCacheReadCorruption, i, t.Role)
		}
	}

	s := &Session{
		ConversationID: *snap.ConversationID,
		OwnerHandle:    *snap.OwnerHandle,
		Title:          *snap.Title,
		Turns:          *snap.Turns,
		Candidates:     *snap.Candidates,
	}
	if snap.Profile != nil {
		s.Profile = *snap.Profile
	}
	return s, nil
}

func missingField(name string) error {
	return fmt.Errorf("%w: missing field %q", convstore.ErrCacheReadCorruption, name)
}
