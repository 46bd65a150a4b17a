package supabase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/creastat/convstore"
	"github.com/creastat/convstore/session"
	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

// Config holds Supabase connection configuration
type Config struct {
	URL             string
	APIKey          string
	ProfileCacheTTL time.Duration // Default: 5 minutes
}

// Client implements the conversation log and profile source using Supabase
type Client struct {
	client   *supabase.Client
	profiles *profileCache
	now      func() time.Time
}

// profileCache provides thread-safe caching of user profiles.
// Conversation rows are never cached: title reconciliation needs the stored value.
type profileCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value     convstore.Profile
	expiresAt time.Time
}

// New creates a new Supabase client
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: supabase URL is required", convstore.ErrInvalidConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: supabase API key is required", convstore.ErrInvalidConfig)
	}

	if cfg.ProfileCacheTTL == 0 {
		cfg.ProfileCacheTTL = 5 * time.Minute
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{
		client: client,
		profiles: &profileCache{
			ttl:     cfg.ProfileCacheTTL,
			entries: make(map[string]cacheEntry),
		},
		now: time.Now,
	}, nil
}

// GetConversation implements session.LogService.
func (c *Client) GetConversation(ctx context.Context, id string) (*convstore.Conversation, error) {
	var rows []conversationRow
	_, err := c.client.From(conversationTable).
		Select("*", "", false).
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	if len(rows) == 0 {
		return nil, convstore.ErrConversationNotFound
	}
	return rows[0].toConversation(), nil
}

// ListConversations returns the owner's conversations, most recently modified first.
func (c *Client) ListConversations(ctx context.Context, owner string) ([]convstore.Conversation, error) {
	var rows []conversationRow
	_, err := c.client.From(conversationTable).
		Select("*", "", false).
		Eq("owner_handle", owner).
		Order("last_modified", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	list := make([]convstore.Conversation, 0, len(rows))
	for _, r := range rows {
		list = append(list, *r.toConversation())
	}
	return list, nil
}

// CreateConversation inserts a conversation. ID and LastModified are filled in when empty.
func (c *Client) CreateConversation(ctx context.Context, conv *convstore.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.Title == "" {
		conv.Title = convstore.UntitledTitle
	}
	if conv.LastModified.IsZero() {
		conv.LastModified = c.now().UTC()
	}

	row := conversationRow{
		ID:           conv.ID,
		OwnerHandle:  conv.OwnerHandle,
		Title:        conv.Title,
		LastModified: conv.LastModified,
	}
	_, _, err := c.client.From(conversationTable).
		Insert(row, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// SetTitleIfUntitled implements session.LogService.
// The stored title is checked with convstore.IsUntitled and the update only applies
// while the row still holds exactly that value.
func (c *Client) SetTitleIfUntitled(ctx context.Context, id, title string) (bool, error) {
	conv, err := c.GetConversation(ctx, id)
	if err != nil {
		return false, err
	}
	if !convstore.IsUntitled(conv.Title) {
		return false, nil
	}

	var rows []conversationRow
	_, err = c.client.From(conversationTable).
		Update(map[string]any{"title": title}, "representation", "").
		Eq("id", id).
		Eq("title", conv.Title).
		ExecuteTo(&rows)
	if err != nil {
		return false, fmt.Errorf("failed to set title: %w", err)
	}
	return len(rows) > 0, nil
}

// TouchLastModified implements session.LogService.
func (c *Client) TouchLastModified(ctx context.Context, id string) error {
	_, _, err := c.client.From(conversationTable).
		Update(map[string]any{"last_modified": c.now().UTC()}, "minimal", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

// DeleteConversation deletes the conversation's messages, then the conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	if _, _, err := c.client.From(messageTable).Delete("minimal", "").Eq("conv_id", id).Execute(); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, _, err := c.client.From(conversationTable).Delete("minimal", "").Eq("id", id).Execute(); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// AppendMessage appends an entry to the conversation log.
func (c *Client) AppendMessage(ctx context.Context, entry *convstore.LogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = c.now().UTC()
	}

	row := messageRow{
		ID:             entry.ID,
		ConversationID: entry.ConversationID,
		Sender:         entry.Sender,
		Content:        entry.Content,
		CreatedAt:      entry.CreatedAt,
	}
	if _, _, err := c.client.From(messageTable).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// ListMessages implements session.LogService.
// Rows come back in insertion order of the server-assigned seq column.
func (c *Client) ListMessages(ctx context.Context, id string) ([]convstore.LogEntry, error) {
	var rows []messageRow
	_, err := c.client.From(messageTable).
		Select("*", "", false).
		Eq("conv_id", id).
		Order("seq", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	entries := make([]convstore.LogEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.toEntry())
	}
	return entries, nil
}

// GetProfile implements session.ProfileSource.
func (c *Client) GetProfile(ctx context.Context, handle string) (convstore.Profile, error) {
	// Check cache first
	if p, ok := c.profiles.get(handle, c.now()); ok {
		return p, nil
	}

	var rows []profileRow
	_, err := c.client.From(profileTable).
		Select("*", "", false).
		Eq("handle", handle).
		ExecuteTo(&rows)
	if err != nil {
		return convstore.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}

	var p convstore.Profile
	if len(rows) > 0 {
		p = convstore.Profile{
			SkillLevel:   rows[0].SkillLevel,
			Goal:         rows[0].Goal,
			InterestTags: rows[0].InterestTags,
		}
	}

	c.profiles.put(handle, p, c.now())
	return p, nil
}

// Close closes the Supabase client
func (c *Client) Close() error {
	// Supabase client doesn't require explicit close
	return nil
}

func (pc *profileCache) get(handle string, now time.Time) (convstore.Profile, bool) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	if e, ok := pc.entries[handle]; ok && now.Before(e.expiresAt) {
		return e.value, true
	}
	return convstore.Profile{}, false
}

func (pc *profileCache) put(handle string, p convstore.Profile, now time.Time) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.entries[handle] = cacheEntry{value: p, expiresAt: now.Add(pc.ttl)}
}

// Compile-time checks
var (
	_ session.LogService    = (*Client)(nil)
	_ session.ProfileSource = (*Client)(nil)
)
