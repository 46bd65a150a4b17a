package session_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/creastat/convstore"
)

// fakeLog is an in-memory LogService.
type fakeLog struct {
	mu            sync.Mutex
	conversations map[string]*convstore.Conversation
	messages      map[string][]convstore.LogEntry
	titleWrites   int
	titleErr      error
	listCalls     int
	touched       int
}

func newFakeLog() *fakeLog {
	return &fakeLog{
		conversations: make(map[string]*convstore.Conversation),
		messages:      make(map[string][]convstore.LogEntry),
	}
}

func (l *fakeLog) addConversation(id, owner, title string, msgs ...convstore.LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conversations[id] = &convstore.Conversation{ID: id, OwnerHandle: owner, Title: title, LastModified: time.Now()}
	l.messages[id] = msgs
}

func (l *fakeLog) title(id string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conversations[id].Title
}

func (l *fakeLog) rename(id, title string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conversations[id].Title = title
}

func (l *fakeLog) GetConversation(ctx context.Context, id string) (*convstore.Conversation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.conversations[id]
	if !ok {
		return nil, convstore.ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

func (l *fakeLog) ListMessages(ctx context.Context, id string) ([]convstore.LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listCalls++
	return append([]convstore.LogEntry(nil), l.messages[id]...), nil
}

func (l *fakeLog) SetTitleIfUntitled(ctx context.Context, id, title string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.titleErr != nil {
		return false, l.titleErr
	}
	c, ok := l.conversations[id]
	if !ok {
		return false, convstore.ErrConversationNotFound
	}
	if !convstore.IsUntitled(c.Title) {
		return false, nil
	}
	l.titleWrites++
	c.Title = title
	return true, nil
}

func (l *fakeLog) TouchLastModified(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.touched++
	return nil
}

// fakeInference replies with a fixed text and an optional title.
type fakeInference struct {
	mu    sync.Mutex
	title string
	err   error
	calls []convstore.InferenceRequest
	delay time.Duration
}

func (f *fakeInference) Respond(ctx context.Context, req convstore.InferenceRequest) (*convstore.InferenceReply, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	req.Turns = append([]convstore.Turn(nil), req.Turns...)
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	reply := &convstore.InferenceReply{
		Text:     "reply to " + req.Message,
		Speech:   "speech",
		Keywords: []string{"greedy"},
	}
	if req.WantTitle {
		reply.Title = f.title
	}
	return reply, nil
}

// fakeCandidates returns a fixed list or an error.
type fakeCandidates struct {
	list []convstore.Candidate
	err  error
}

func (f *fakeCandidates) Rank(ctx context.Context, handle string) ([]convstore.Candidate, error) {
	return f.list, f.err
}

type fakeProfiles struct{}

func (fakeProfiles) GetProfile(ctx context.Context, handle string) (convstore.Profile, error) {
	return convstore.Profile{SkillLevel: "silver", Goal: "interview", InterestTags: []string{"dp", "graphs"}}, nil
}

// brokenCache fails every operation.
type brokenCache struct{}

var errDown = errors.New("connection refused")

func (brokenCache) Get(ctx context.Context, id string) ([]byte, error) { return nil, errDown }
func (brokenCache) Put(ctx context.Context, id string, b []byte, ttl time.Duration) error {
	return errDown
}
func (brokenCache) Delete(ctx context.Context, id string) error                { return errDown }
func (brokenCache) Touch(ctx context.Context, id string, ttl time.Duration) error { return errDown }
func (brokenCache) Close() error                                                { return nil }

// gatedLog holds the first ListMessages call after it has read the log until release
// is closed.
type gatedLog struct {
	*fakeLog
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newGatedLog(log *fakeLog) *gatedLog {
	return &gatedLog{fakeLog: log, read: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedLog) ListMessages(ctx context.Context, id string) ([]convstore.LogEntry, error) {
	msgs, err := g.fakeLog.ListMessages(ctx, id)
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.read)
		<-g.release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return msgs, err
}

func (l *fakeLog) append(id string, msgs ...convstore.LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages[id] = append(l.messages[id], msgs...)
}

func (l *fakeLog) count(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages[id])
}
