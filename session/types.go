package session

import (
	"slices"

	"github.com/creastat/convstore"
)

// Session is the per-conversation working state held in the session cache.
// It can always be rebuilt from the conversation log.
type Session struct {
	ConversationID string                `json:"conversation_id"`
	OwnerHandle    string                `json:"owner_handle"` // Authority for ownership checks
	Profile        convstore.Profile     `json:"profile"`
	Title          string                `json:"title"`
	Turns          []convstore.Turn      `json:"turns"`
	Candidates     []convstore.Candidate `json:"candidates"` // Fixed at materialization
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	c := *s
	c.Profile.InterestTags = slices.Clone(s.Profile.InterestTags)
	c.Turns = slices.Clone(s.Turns)
	c.Candidates = slices.Clone(s.Candidates)
	return &c
}

// AddTurn appends a role-tagged turn.
func (s *Session) AddTurn(role convstore.Role, content string) {
	s.Turns = convstore.AddTurn(s.Turns, role, content)
}
