package supabase

import (
	"time"

	"github.com/creastat/convstore"
)

// Table names in the Supabase project.
const (
	conversationTable = "conversation"
	messageTable      = "message"
	profileTable      = "user_profile"
)

// conversationRow represents a conversation row from the database
type conversationRow struct {
	ID           string    `json:"id"`
	OwnerHandle  string    `json:"owner_handle"`
	Title        string    `json:"title"`
	LastModified time.Time `json:"last_modified"`
}

func (r conversationRow) toConversation() *convstore.Conversation {
	return &convstore.Conversation{
		ID:           r.ID,
		OwnerHandle:  r.OwnerHandle,
		Title:        r.Title,
		LastModified: r.LastModified,
	}
}

// messageRow represents a message row from the database.
// Seq is an identity column assigned by Postgres and orders the log.
type messageRow struct {
	Seq            int64     `json:"seq,omitempty"`
	ID             string    `json:"id"`
	ConversationID string    `json:"conv_id"`
	Sender         string    `json:"sender"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

func (r messageRow) toEntry() convstore.LogEntry {
	return convstore.LogEntry{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Sender:         r.Sender,
		Content:        r.Content,
		CreatedAt:      r.CreatedAt,
	}
}

// profileRow represents a user profile row from the database
type profileRow struct {
	Handle       string   `json:"handle"`
	SkillLevel   string   `json:"skill_level"`
	Goal         string   `json:"goal"`
	InterestTags []string `json:"interest_tags"`
}
