package inference

import (
	"strings"
	"testing"

	"github.com/creastat/convstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextPrompt(t *testing.T) {
	req := convstore.InferenceRequest{
		Profile: convstore.Profile{SkillLevel: "gold", Goal: "interview", InterestTags: []string{"dp", "graphs"}},
		Candidates: []convstore.Candidate{
			{ID: "1463", Title: "1로 만들기", Level: 8},
			{ID: "9999"},
		},
		WantTitle: true,
	}

	got := ContextPrompt(req)
	assert.Contains(t, got, `"title"`)
	assert.Contains(t, got, "skill level: gold")
	assert.Contains(t, got, "interested in: dp, graphs")
	assert.Contains(t, got, "1로 만들기 (1463) https://www.acmicpc.net/problem/1463 - Silver 3")
	assert.Contains(t, got, "problem 9999 (9999)")
	assert.Contains(t, got, "Unrated")

	req.WantTitle = false
	req.Candidates = nil
	req.Profile = convstore.Profile{}
	got = ContextPrompt(req)
	assert.NotContains(t, got, `"title"`)
	assert.NotContains(t, got, "User profile")
	assert.Contains(t, got, "No personalised candidates")
}

func TestPrompt_ContextAfterPinnedDeveloperTurns(t *testing.T) {
	req := convstore.InferenceRequest{
		Turns: []convstore.Turn{
			{Role: convstore.RoleDeveloper, Content: "persona"},
			{Role: convstore.RoleUser, Content: "hi"},
			{Role: convstore.RoleAssistant, Content: "hello"},
			{Role: convstore.RoleUser, Content: "recommend"},
		},
	}

	got := Prompt(req, Window{})
	require.Len(t, got, 5)
	assert.Equal(t, "persona", got[0].Content)
	assert.Equal(t, convstore.RoleDeveloper, got[1].Role)
	assert.True(t, strings.HasPrefix(got[1].Content, "Reply with a single JSON object"))
	assert.Equal(t, "recommend", got[4].Content)
	assert.Len(t, req.Turns, 4, "input is not mutated")
}

func TestPrompt_Window(t *testing.T) {
	turns := []convstore.Turn{{Role: convstore.RoleDeveloper, Content: "persona"}}
	for i := 0; i < 10; i++ {
		turns = append(turns, convstore.Turn{Role: convstore.RoleUser, Content: "message"})
	}

	got := Prompt(convstore.InferenceRequest{Turns: turns}, Window{MessageLimit: 4})
	assert.Equal(t, convstore.RoleDeveloper, got[0].Role)
	assert.Equal(t, "persona", got[0].Content)
	require.Len(t, got, 6)
	assert.Equal(t, convstore.RoleDeveloper, got[1].Role)
}

func TestPrompt_OversizedMessageStillSent(t *testing.T) {
	message := strings.Repeat("for (int i = 0; i < n; i++) { dp[i] = max(dp[i], dp[i-1]); }\n", 450)
	turns := []convstore.Turn{{Role: convstore.RoleDeveloper, Content: "persona", TokenCount: 2}}
	turns = convstore.AddTurn(turns, convstore.RoleUser, "hi")
	turns = convstore.AddTurn(turns, convstore.RoleAssistant, "hello")
	turns = convstore.AddTurn(turns, convstore.RoleUser, message)
	require.Greater(t, turns[len(turns)-1].TokenCount, DefaultWindow().TokenLimit)

	got := Prompt(convstore.InferenceRequest{Turns: turns, Message: message}, DefaultWindow())

	last := got[len(got)-1]
	assert.Equal(t, convstore.RoleUser, last.Role)
	assert.Equal(t, message, last.Content)
}
