package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/creastat/convstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{APIKey: "k"})
	assert.ErrorIs(t, err, convstore.ErrInvalidConfig)

	_, err = New(Config{URL: "https://x.supabase.co"})
	assert.ErrorIs(t, err, convstore.ErrInvalidConfig)
}

func TestRowDecoding(t *testing.T) {
	var rows []messageRow
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id":"m1","conv_id":"c1","sender":"alice","content":"hi","created_at":"2025-03-01T12:00:00Z"}
	]`), &rows))

	e := rows[0].toEntry()
	assert.Equal(t, "c1", e.ConversationID)
	assert.Equal(t, "alice", e.Sender)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), e.CreatedAt)

	var conv conversationRow
	require.NoError(t, json.Unmarshal([]byte(
		`{"id":"c1","owner_handle":"alice","title":"untitled","last_modified":"2025-03-01T12:00:00Z"}`), &conv))
	assert.Equal(t, "alice", conv.toConversation().OwnerHandle)
}

func TestProfileCache_Expiry(t *testing.T) {
	pc := &profileCache{ttl: time.Minute, entries: make(map[string]cacheEntry)}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	pc.put("alice", convstore.Profile{Goal: "ICPC"}, now)

	p, ok := pc.get("alice", now.Add(30*time.Second))
	require.True(t, ok)
	assert.Equal(t, "ICPC", p.Goal)

	_, ok = pc.get("alice", now.Add(2*time.Minute))
	assert.False(t, ok)
}

// restServer serves the PostgREST calls the client makes against one conversation row.
type restServer struct {
	mu       sync.Mutex
	title    string
	patches  []string
	order    string
	inserted []map[string]any
}

func (s *restServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := r.URL.Query()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(r.URL.Path, "/conversation") && r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode([]conversationRow{{ID: "c1", OwnerHandle: "alice", Title: s.title}})
	case strings.HasSuffix(r.URL.Path, "/conversation") && r.Method == http.MethodPatch:
		s.patches = append(s.patches, q.Get("title"))
		if q.Get("title") != "eq."+s.title {
			_, _ = io.WriteString(w, "[]")
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.title = body["title"]
		_ = json.NewEncoder(w).Encode([]conversationRow{{ID: "c1", OwnerHandle: "alice", Title: s.title}})
	case strings.HasSuffix(r.URL.Path, "/message") && r.Method == http.MethodPost:
		var row map[string]any
		_ = json.NewDecoder(r.Body).Decode(&row)
		s.inserted = append(s.inserted, row)
		w.WriteHeader(http.StatusCreated)
	case strings.HasSuffix(r.URL.Path, "/message") && r.Method == http.MethodGet:
		s.order = q.Get("order")
		_, _ = io.WriteString(w, `[
			{"seq":1,"id":"m2","conv_id":"c1","sender":"alice","content":"first","created_at":"2025-03-01T12:00:05Z"},
			{"seq":2,"id":"m1","conv_id":"c1","sender":"assistant","content":"second","created_at":"2025-03-01T12:00:00Z"}
		]`)
	default:
		http.NotFound(w, r)
	}
}

func newRestClient(t *testing.T, srv *restServer) *Client {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	c, err := New(Config{URL: ts.URL, APIKey: "test-key"})
	require.NoError(t, err)
	return c
}

func TestSetTitleIfUntitled_PaddedSentinel(t *testing.T) {
	srv := &restServer{title: "  Untitled "}
	c := newRestClient(t, srv)

	applied, err := c.SetTitleIfUntitled(context.Background(), "c1", "Graph practice")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "Graph practice", srv.title)
	assert.Equal(t, []string{"eq.  Untitled "}, srv.patches)
}

func TestSetTitleIfUntitled_RealTitleKept(t *testing.T) {
	srv := &restServer{title: "Dynamic programming"}
	c := newRestClient(t, srv)

	applied, err := c.SetTitleIfUntitled(context.Background(), "c1", "Graph practice")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, "Dynamic programming", srv.title)
	assert.Empty(t, srv.patches)
}

func TestListMessages_OrderedBySeq(t *testing.T) {
	srv := &restServer{}
	c := newRestClient(t, srv)
	ctx := context.Background()

	require.NoError(t, c.AppendMessage(ctx, &convstore.LogEntry{ConversationID: "c1", Sender: "alice", Content: "hi"}))
	require.Len(t, srv.inserted, 1)
	assert.NotContains(t, srv.inserted[0], "seq", "seq is assigned by the database")

	entries, err := c.ListMessages(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(srv.order, "seq.asc"), "order=%q", srv.order)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Content)
	assert.Equal(t, "second", entries[1].Content)
}
