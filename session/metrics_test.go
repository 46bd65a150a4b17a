package session

import (
	"context"
	"testing"
	"time"

	"github.com/creastat/convstore"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapCache is a minimal Cache for metric assertions.
type mapCache map[string][]byte

func (c mapCache) Get(_ context.Context, id string) ([]byte, error) { return c[id], nil }
func (c mapCache) Put(_ context.Context, id string, b []byte, _ time.Duration) error {
	c[id] = b
	return nil
}
func (c mapCache) Delete(_ context.Context, id string) error {
	delete(c, id)
	return nil
}
func (c mapCache) Touch(context.Context, string, time.Duration) error { return nil }
func (c mapCache) Close() error                                       { return nil }

type staticLog struct{}

func (staticLog) GetConversation(_ context.Context, id string) (*convstore.Conversation, error) {
	return &convstore.Conversation{ID: id, OwnerHandle: "alice", Title: "untitled"}, nil
}
func (staticLog) ListMessages(context.Context, string) ([]convstore.LogEntry, error) { return nil, nil }
func (staticLog) SetTitleIfUntitled(context.Context, string, string) (bool, error)  { return true, nil }
func (staticLog) TouchLastModified(context.Context, string) error                   { return nil }

type echoInference struct{}

func (echoInference) Respond(_ context.Context, req convstore.InferenceRequest) (*convstore.InferenceReply, error) {
	return &convstore.InferenceReply{Text: req.Message}, nil
}

func TestMetrics_CacheLookups(t *testing.T) {
	cache := mapCache{}
	m, err := NewManager(cache, staticLog{}, echoInference{})
	require.NoError(t, err)
	ctx := context.Background()

	miss := testutil.ToFloat64(cacheLookups.WithLabelValues("miss"))
	hit := testutil.ToFloat64(cacheLookups.WithLabelValues("hit"))
	corrupt := testutil.ToFloat64(cacheLookups.WithLabelValues("corrupt"))
	ok := testutil.ToFloat64(turns.WithLabelValues("ok"))

	_, err = m.ObtainSession(ctx, "c1", "alice")
	require.NoError(t, err)
	_, err = m.ObtainSession(ctx, "c1", "alice")
	require.NoError(t, err)

	cache["c1"] = []byte("{")
	_, err = m.RunTurn(ctx, "c1", "alice", "hi")
	require.NoError(t, err)

	assert.Equal(t, miss+1, testutil.ToFloat64(cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, hit+1, testutil.ToFloat64(cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, corrupt+1, testutil.ToFloat64(cacheLookups.WithLabelValues("corrupt")))
	assert.Equal(t, ok+1, testutil.ToFloat64(turns.WithLabelValues("ok")))
}
