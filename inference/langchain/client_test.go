package langchain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/creastat/convstore"
	"github.com/creastat/convstore/inference/langchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type scriptedModel struct {
	content string
	err     error
	seen    []llms.MessageContent
	opts    llms.CallOptions
}

func (m *scriptedModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.seen = messages
	for _, o := range options {
		o(&m.opts)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.content}}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func request() convstore.InferenceRequest {
	return convstore.InferenceRequest{
		ConversationID: "c1",
		Turns: []convstore.Turn{
			{Role: convstore.RoleDeveloper, Content: "persona"},
			{Role: convstore.RoleUser, Content: "hi"},
			{Role: convstore.RoleAssistant, Content: "hello"},
			{Role: convstore.RoleUser, Content: "recommend"},
		},
		Message: "recommend",
	}
}

func TestRespond(t *testing.T) {
	model := &scriptedModel{content: `{"reply":"Try 1000","keywords":["math"],"title":"ignored"}`}
	c, err := langchain.New(model, langchain.WithTemperature(0.2))
	require.NoError(t, err)

	reply, err := c.Respond(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "Try 1000", reply.Text)
	assert.Equal(t, "Try 1000", reply.Speech)
	assert.Equal(t, []string{"math"}, reply.Keywords)
	assert.Empty(t, reply.Title, "title only when requested")

	require.Len(t, model.seen, 5)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.seen[0].Role)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.seen[1].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.seen[2].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.seen[3].Role)
	assert.True(t, model.opts.JSONMode)
	assert.InDelta(t, 0.2, model.opts.Temperature, 1e-9)
}

func TestRespond_ModelError(t *testing.T) {
	c, err := langchain.New(&scriptedModel{err: errors.New("quota")})
	require.NoError(t, err)

	_, err = c.Respond(context.Background(), request())
	assert.ErrorIs(t, err, convstore.ErrInference)
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := langchain.New(nil)
	assert.ErrorIs(t, err, convstore.ErrInvalidConfig)
}
