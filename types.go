package convstore

import (
	"strings"
	"time"
)

// Role tags a turn in a session's running context.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleDeveloper Role = "developer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleDeveloper:
		return true
	}
	return false
}

const (
	// AssistantSender is the sender recorded in the log for assistant messages.
	AssistantSender = "assistant"
	// DeveloperSender is the sender recorded in the log for developer prompts.
	DeveloperSender = "developer"
	// UntitledTitle is the sentinel title of a conversation that has not been named yet.
	UntitledTitle = "untitled"
)

// IsUntitled reports whether title is the sentinel, ignoring case and surrounding whitespace.
func IsUntitled(title string) bool {
	return strings.EqualFold(strings.TrimSpace(title), UntitledTitle)
}

// Conversation is the metadata record held by the log service.
type Conversation struct {
	ID           string    `json:"id"`
	OwnerHandle  string    `json:"owner_handle"`
	Title        string    `json:"title"`
	LastModified time.Time `json:"last_modified"`
}

// LogEntry is one persisted message of a conversation.
type LogEntry struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conv_id"`
	Sender         string    `json:"sender"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Profile holds the owner attributes used to shape responses.
type Profile struct {
	SkillLevel   string   `json:"skill_level"`
	Goal         string   `json:"goal"`
	InterestTags []string `json:"interest_tags"`
}

// Candidate is a ranked recommendation handed to the inference service.
type Candidate struct {
	ID    string  `json:"id"`
	Title string  `json:"title,omitempty"`
	Level int     `json:"level,omitempty"`
	Score float32 `json:"score,omitempty"`
}

// Turn is a single role-tagged entry of a session's history.
type Turn struct {
	Role       Role   `json:"role"`
	Content    string `json:"content"`
	TokenCount int    `json:"token_count"` // Estimated tokens
}

// InferenceRequest is everything an inference backend sees for one turn.
// Turns already ends with the user turn carrying Message.
type InferenceRequest struct {
	ConversationID string
	Turns          []Turn
	Candidates     []Candidate
	Profile        Profile
	Message        string
	// WantTitle asks the backend to derive a conversation title.
	WantTitle bool
}

// InferenceReply is the result of one inference call.
type InferenceReply struct {
	Text     string
	Speech   string
	Keywords []string
	// Title is a derived conversation title, empty when none was produced.
	Title string
}
