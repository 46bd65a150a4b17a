package convstore

// TruncateHistory truncates the conversation history based on token and message limits.
// It applies message limit first, then token limit, removing oldest turns as needed.
// Developer turns at the head of the history are always kept, and so is the newest turn
// even when it alone exceeds the token limit. Non-positive limits disable the
// corresponding bound.
func TruncateHistory(history []Turn, tokenLimit, messageLimit int) []Turn {
	if len(history) == 0 {
		return history
	}

	// Leading developer prompts carry the persona and survive truncation
	pinned := 0
	for pinned < len(history) && history[pinned].Role == RoleDeveloper {
		pinned++
	}
	head, rest := history[:pinned], history[pinned:]

	if messageLimit > 0 && len(rest) > messageLimit {
		rest = rest[len(rest)-messageLimit:]
	}

	if tokenLimit > 0 {
		totalTokens := 0
		for _, t := range head {
			totalTokens += t.TokenCount
		}
		for _, t := range rest {
			totalTokens += t.TokenCount
		}
		for totalTokens > tokenLimit && len(rest) > 1 {
			totalTokens -= rest[0].TokenCount
			rest = rest[1:]
		}
	}

	out := make([]Turn, 0, len(head)+len(rest))
	out = append(out, head...)
	return append(out, rest...)
}

// AddTurn appends a turn to the history with an estimated token count.
func AddTurn(history []Turn, role Role, content string) []Turn {
	return append(history, Turn{
		Role:       role,
		Content:    content,
		TokenCount: EstimateTokens(content),
	})
}
