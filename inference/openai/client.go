// Package openai implements the inference service over the OpenAI chat completions API.
package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/creastat/convstore"
	"github.com/creastat/convstore/inference"
	"github.com/creastat/convstore/session"
	"github.com/sashabaranov/go-openai"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gpt-4o-mini"

// Config holds OpenAI client configuration.
type Config struct {
	APIKey string
	// BaseURL points at an OpenAI-compatible endpoint. Optional.
	BaseURL     string
	Model       string
	Temperature float32
	Window      inference.Window
}

// Client implements session.InferenceService.
type Client struct {
	client *openai.Client
	model  string
	temp   float32
	window inference.Window
	logger *slog.Logger
}

// New creates an OpenAI inference client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key is required", convstore.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Window == (inference.Window{}) {
		cfg.Window = inference.DefaultWindow()
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger.Info("Initializing OpenAI client", "model", cfg.Model)

	return &Client{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		temp:   cfg.Temperature,
		window: cfg.Window,
		logger: logger,
	}, nil
}

// Respond implements session.InferenceService.
func (c *Client) Respond(ctx context.Context, req convstore.InferenceRequest) (*convstore.InferenceReply, error) {
	turns := inference.Prompt(req, c.window)
	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, openai.ChatCompletionMessage{Role: chatRole(t.Role), Content: t.Content})
	}

	c.logger.Debug("Generating reply via OpenAI", "model", c.model, "conversation_id", req.ConversationID, "messages", len(messages))
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temp,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.logger.Error("OpenAI API call failed", "conversation_id", req.ConversationID, "error", err)
		return nil, inference.Wrap("openai", err)
	}
	if len(resp.Choices) == 0 {
		return nil, inference.Wrap("openai", fmt.Errorf("no choices returned"))
	}
	c.logger.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)

	reply, err := inference.ParseReply(resp.Choices[0].Message.Content, req.WantTitle)
	if err != nil {
		return nil, inference.Wrap("openai", err)
	}
	return reply, nil
}

func chatRole(r convstore.Role) string {
	switch r {
	case convstore.RoleUser:
		return openai.ChatMessageRoleUser
	case convstore.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleSystem
	}
}

var _ session.InferenceService = (*Client)(nil)
