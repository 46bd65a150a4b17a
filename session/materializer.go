package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/creastat/convstore"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Materializer rebuilds sessions from durable state.
type Materializer struct {
	logs       LogService
	profiles   ProfileSource
	candidates CandidateService
	logger     *slog.Logger
}

// NewMaterializer creates a materializer. profiles and candidates may be nil.
func NewMaterializer(logs LogService, profiles ProfileSource, candidates CandidateService, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{
		logs:       logs,
		profiles:   profiles,
		candidates: candidates,
		logger:     logger,
	}
}

// Materialize builds a fresh session for the conversation on behalf of requester.
// The owner recorded on the conversation is authoritative: a different requester gets
// ErrUnauthorizedSessionAccess before any message is read.
func (m *Materializer) Materialize(ctx context.Context, conversationID, requester string) (*Session, error) {
	ctx, span := tracer.Start(ctx, "Materializer.Materialize",
		trace.WithAttributes(attribute.String("conversation_id", conversationID)))
	defer span.End()

	s, err := m.materialize(ctx, conversationID, requester)
	switch {
	case err == nil:
		materializations.WithLabelValues("ok").Inc()
	case errors.Is(err, convstore.ErrConversationNotFound):
		materializations.WithLabelValues("not_found").Inc()
	case errors.Is(err, convstore.ErrUnauthorizedSessionAccess):
		materializations.WithLabelValues("unauthorized").Inc()
	default:
		materializations.WithLabelValues("error").Inc()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return s, err
}

func (m *Materializer) materialize(ctx context.Context, conversationID, requester string) (*Session, error) {
	conv, err := m.logs.GetConversation(ctx, conversationID)
	if errors.Is(err, convstore.ErrConversationNotFound) {
		return nil, fmt.Errorf("%w: %s", convstore.ErrConversationNotFound, conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %v", conversationID, err)
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: %s", convstore.ErrConversationNotFound, conversationID)
	}

	if conv.OwnerHandle != requester {
		return nil, fmt.Errorf("%w: conversation %s", convstore.ErrUnauthorizedSessionAccess, conversationID)
	}

	entries, err := m.logs.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages of %s: %v", conversationID, err)
	}

	title := conv.Title
	if title == "" {
		title = convstore.UntitledTitle
	}

	return &Session{
		ConversationID: conversationID,
		OwnerHandle:    conv.OwnerHandle,
		Profile:        m.profile(ctx, conv.OwnerHandle),
		Title:          title,
		Turns:          convstore.TurnsFromLog(entries, conv.OwnerHandle),
		Candidates:     m.rank(ctx, conv.OwnerHandle),
	}, nil
}

// profile degrades to an empty profile when the source is unavailable.
func (m *Materializer) profile(ctx context.Context, handle string) convstore.Profile {
	if m.profiles == nil {
		return convstore.Profile{}
	}
	p, err := m.profiles.GetProfile(ctx, handle)
	if err != nil {
		m.logger.Warn("profile unavailable, using empty profile", "user", handle, "error", err)
		return convstore.Profile{}
	}
	return p
}

// rank degrades to an empty candidate list when the candidate service fails.
func (m *Materializer) rank(ctx context.Context, handle string) []convstore.Candidate {
	if m.candidates == nil {
		return []convstore.Candidate{}
	}
	cands, err := m.candidates.Rank(ctx, handle)
	if err != nil {
		m.logger.Warn("candidate ranking failed, continuing without candidates",
			"user", handle, "error", fmt.Errorf("%w: %v", convstore.ErrCandidateService, err))
		return []convstore.Candidate{}
	}
	if cands == nil {
		return []convstore.Candidate{}
	}
	return cands
}
