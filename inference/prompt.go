// Package inference holds the prompt and reply handling shared by the model backends.
package inference

import (
	"fmt"
	"strings"

	"github.com/creastat/convstore"
	"github.com/creastat/convstore/candidates"
)

// Defaults for the history window sent to the model.
const (
	DefaultTokenLimit   = 6000
	DefaultMessageLimit = 40
)

// Window bounds the history sent with each request. Non-positive limits disable that bound.
type Window struct {
	TokenLimit   int
	MessageLimit int
}

// DefaultWindow returns the default history window.
func DefaultWindow() Window {
	return Window{TokenLimit: DefaultTokenLimit, MessageLimit: DefaultMessageLimit}
}

// ProblemURL links a problem on Baekjoon Online Judge.
func ProblemURL(id string) string {
	return "https://www.acmicpc.net/problem/" + id
}

// ContextPrompt renders the per-turn instructions: the owner profile, the ranked
// candidates and the reply format.
func ContextPrompt(req convstore.InferenceRequest) string {
	var b strings.Builder

	b.WriteString("Reply with a single JSON object with the keys \"reply\" (markdown text shown to the user), ")
	b.WriteString("\"speech\" (the same answer as plain sentences for text-to-speech) and ")
	b.WriteString("\"keywords\" (a short list of algorithm topics mentioned)")
	if req.WantTitle {
		b.WriteString(", and \"title\" (a short title for this conversation, at most 30 characters)")
	}
	b.WriteString(".\n")

	p := req.Profile
	if p.SkillLevel != "" || p.Goal != "" || len(p.InterestTags) > 0 {
		b.WriteString("\nUser profile:\n")
		if p.SkillLevel != "" {
			fmt.Fprintf(&b, "- skill level: %s\n", p.SkillLevel)
		}
		if p.Goal != "" {
			fmt.Fprintf(&b, "- goal: %s\n", p.Goal)
		}
		if len(p.InterestTags) > 0 {
			fmt.Fprintf(&b, "- interested in: %s\n", strings.Join(p.InterestTags, ", "))
		}
	}

	if len(req.Candidates) == 0 {
		b.WriteString("\nNo personalised candidates are available; recommend well-known problems instead.\n")
		return b.String()
	}

	b.WriteString("\nRecommend from these problems, best match first:\n")
	for _, c := range req.Candidates {
		title := c.Title
		if title == "" {
			title = "problem " + c.ID
		}
		fmt.Fprintf(&b, "- %s (%s) %s - %s\n", title, c.ID, ProblemURL(c.ID), candidates.Tier(c.Level))
	}
	return b.String()
}

// Prompt returns the turns to send: the context prompt followed by the windowed history.
// Leading developer turns survive truncation.
func Prompt(req convstore.InferenceRequest, w Window) []convstore.Turn {
	history := convstore.TruncateHistory(req.Turns, w.TokenLimit, w.MessageLimit)

	// Context goes after the pinned developer turns and before the conversation.
	pinned := 0
	for pinned < len(history) && history[pinned].Role == convstore.RoleDeveloper {
		pinned++
	}

	ctxPrompt := ContextPrompt(req)
	out := make([]convstore.Turn, 0, len(history)+1)
	out = append(out, history[:pinned]...)
	out = append(out, convstore.Turn{
		Role:       convstore.RoleDeveloper,
		Content:    ctxPrompt,
		TokenCount: convstore.EstimateTokens(ctxPrompt),
	})
	out = append(out, history[pinned:]...)
	return out
}
