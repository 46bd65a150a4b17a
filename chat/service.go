// Package chat implements the conversation workflow on top of the session manager:
// starting conversations, posting messages and reading them back.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/creastat/convstore"
	"github.com/creastat/convstore/session"
)

// DefaultSpeechTTL is how long a reply's speech payload stays retrievable.
const DefaultSpeechTTL = 5 * time.Minute

var (
	// ErrEmptyMessage is returned for blank message content.
	ErrEmptyMessage = errors.New("message content is empty")

	// ErrSpeechNotFound means the speech payload expired or was never stored.
	ErrSpeechNotFound = errors.New("speech payload not found")
)

// Store is the durable log the workflow reads and appends to.
type Store interface {
	session.LogService

	CreateConversation(ctx context.Context, conv *convstore.Conversation) error
	ListConversations(ctx context.Context, owner string) ([]convstore.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, entry *convstore.LogEntry) error
}

// Message is a log entry as shown to the owner.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Keywords  []string  `json:"keywords,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// StartResult is a new conversation together with its first assistant reply.
type StartResult struct {
	Conversation convstore.Conversation `json:"conversation"`
	FirstMessage Message                `json:"first_message"`
}

// Option configures a Service.
type Option func(*Service)

// WithSpeechCache stores each reply's speech payload under its message ID.
func WithSpeechCache(c session.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.speech = c
		if ttl > 0 {
			s.speechTTL = ttl
		}
	}
}

// WithPersona replaces the developer prompt of new conversations.
func WithPersona(prompt string) Option {
	return func(s *Service) {
		if strings.TrimSpace(prompt) != "" {
			s.persona = prompt
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service drives conversations for authenticated users.
type Service struct {
	store     Store
	manager   *session.Manager
	speech    session.Cache
	speechTTL time.Duration
	persona   string
	logger    *slog.Logger
}

// NewService creates the workflow service.
func NewService(store Store, manager *session.Manager, opts ...Option) (*Service, error) {
	if store == nil || manager == nil {
		return nil, fmt.Errorf("%w: chat needs a store and a session manager", convstore.ErrInvalidConfig)
	}
	s := &Service{
		store:     store,
		manager:   manager,
		speechTTL: DefaultSpeechTTL,
		persona:   DefaultPersona,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// StartConversation creates a conversation owned by user, seeds it with the developer
// prompt and runs the first turn.
func (s *Service) StartConversation(ctx context.Context, user, content string) (*StartResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}

	conv := &convstore.Conversation{OwnerHandle: user, Title: convstore.UntitledTitle}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	if err := s.store.AppendMessage(ctx, &convstore.LogEntry{
		ConversationID: conv.ID,
		Sender:         convstore.DeveloperSender,
		Content:        s.persona,
	}); err != nil {
		s.discard(ctx, conv.ID)
		return nil, err
	}

	msg, err := s.turn(ctx, conv.ID, user, content)
	if err != nil {
		s.discard(ctx, conv.ID)
		return nil, err
	}

	// The first turn may have named the conversation.
	latest, err := s.store.GetConversation(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("conversation started", "conversation_id", conv.ID, "user", user)
	return &StartResult{Conversation: *latest, FirstMessage: *msg}, nil
}

// PostMessage runs one turn in an existing conversation and returns the assistant reply.
func (s *Service) PostMessage(ctx context.Context, conversationID, user, content string) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	return s.turn(ctx, conversationID, user, content)
}

// GetConversation returns the conversation metadata if user owns it.
func (s *Service) GetConversation(ctx context.Context, conversationID, user string) (*convstore.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.OwnerHandle != user {
		return nil, convstore.ErrUnauthorizedSessionAccess
	}
	return conv, nil
}

// ListMessages returns the conversation's messages without developer prompts.
func (s *Service) ListMessages(ctx context.Context, conversationID, user string) ([]Message, error) {
	conv, err := s.GetConversation(ctx, conversationID, user)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	out := make([]Message, 0, len(entries))
	for _, e := range entries {
		if convstore.RoleForSender(e.Sender, conv.OwnerHandle) == convstore.RoleDeveloper {
			continue
		}
		out = append(out, Message{ID: e.ID, Sender: e.Sender, Content: e.Content, CreatedAt: e.CreatedAt})
	}
	return out, nil
}

// ListConversations returns user's conversations, most recently modified first.
func (s *Service) ListConversations(ctx context.Context, user string) ([]convstore.Conversation, error) {
	return s.store.ListConversations(ctx, user)
}

// DeleteConversation removes the conversation from the log and drops its cached session.
func (s *Service) DeleteConversation(ctx context.Context, conversationID, user string) error {
	if _, err := s.GetConversation(ctx, conversationID, user); err != nil {
		return err
	}
	if err := s.store.DeleteConversation(ctx, conversationID); err != nil {
		return err
	}
	s.manager.DeleteSession(ctx, conversationID)
	s.logger.Info("conversation deleted", "conversation_id", conversationID, "user", user)
	return nil
}

// Speech returns the speech payload stored for an assistant message.
func (s *Service) Speech(ctx context.Context, messageID string) (string, error) {
	if s.speech == nil {
		return "", ErrSpeechNotFound
	}
	raw, err := s.speech.Get(ctx, messageID)
	if err != nil {
		return "", fmt.Errorf("failed to read speech payload: %w", err)
	}
	if raw == nil {
		return "", ErrSpeechNotFound
	}
	return string(raw), nil
}

// turn runs the manager and appends the user and assistant messages while the
// conversation is held, so the log and the cached turns stay in the same order.
func (s *Service) turn(ctx context.Context, conversationID, user, content string) (*Message, error) {
	var assistant convstore.LogEntry
	res, err := s.manager.RunTurn(ctx, conversationID, user, content,
		session.WithCommit(func(ctx context.Context, r *session.TurnResult) error {
			if err := s.store.AppendMessage(ctx, &convstore.LogEntry{
				ConversationID: conversationID,
				Sender:         user,
				Content:        content,
			}); err != nil {
				return err
			}
			assistant = convstore.LogEntry{
				ConversationID: conversationID,
				Sender:         convstore.AssistantSender,
				Content:        r.Text,
			}
			return s.store.AppendMessage(ctx, &assistant)
		}))
	if err != nil {
		return nil, err
	}

	if s.speech != nil && res.Speech != "" {
		if err := s.speech.Put(ctx, assistant.ID, []byte(res.Speech), s.speechTTL); err != nil {
			s.logger.Warn("failed to store speech payload", "conversation_id", conversationID, "message_id", assistant.ID, "error", err)
		}
	}

	return &Message{
		ID:        assistant.ID,
		Sender:    assistant.Sender,
		Content:   assistant.Content,
		Keywords:  res.Keywords,
		CreatedAt: assistant.CreatedAt,
	}, nil
}

// discard removes a conversation whose first turn never completed.
func (s *Service) discard(ctx context.Context, conversationID string) {
	if err := s.store.DeleteConversation(ctx, conversationID); err != nil {
		s.logger.Warn("failed to discard incomplete conversation", "conversation_id", conversationID, "error", err)
	}
	s.manager.DeleteSession(ctx, conversationID)
}
