// Package langchain implements the inference service over any langchaingo model.
package langchain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/creastat/convstore"
	"github.com/creastat/convstore/inference"
	"github.com/creastat/convstore/session"
	"github.com/tmc/langchaingo/llms"
)

// Client implements session.InferenceService on top of an llms.Model.
type Client struct {
	model       llms.Model
	temperature float64
	window      inference.Window
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithWindow sets the history window.
func WithWindow(w inference.Window) Option {
	return func(c *Client) {
		c.window = w
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New wraps a langchaingo model.
func New(model llms.Model, opts ...Option) (*Client, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: langchain model is required", convstore.ErrInvalidConfig)
	}
	c := &Client{
		model:       model,
		temperature: 0.7,
		window:      inference.DefaultWindow(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Respond implements session.InferenceService.
func (c *Client) Respond(ctx context.Context, req convstore.InferenceRequest) (*convstore.InferenceReply, error) {
	turns := inference.Prompt(req, c.window)
	messages := make([]llms.MessageContent, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, llms.TextParts(messageType(t.Role), t.Content))
	}

	resp, err := c.model.GenerateContent(ctx, messages,
		llms.WithTemperature(c.temperature),
		llms.WithJSONMode(),
	)
	if err != nil {
		c.logger.Error("langchain generation failed", "conversation_id", req.ConversationID, "error", err)
		return nil, inference.Wrap("langchain", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, inference.Wrap("langchain", fmt.Errorf("no choices returned"))
	}

	reply, err := inference.ParseReply(resp.Choices[0].Content, req.WantTitle)
	if err != nil {
		return nil, inference.Wrap("langchain", err)
	}
	return reply, nil
}

func messageType(r convstore.Role) llms.ChatMessageType {
	switch r {
	case convstore.RoleUser:
		return llms.ChatMessageTypeHuman
	case convstore.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeSystem
	}
}

var _ session.InferenceService = (*Client)(nil)
