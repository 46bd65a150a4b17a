package convstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleForSender(t *testing.T) {
	tests := []struct {
		sender string
		want   Role
	}{
		{"alice", RoleUser},
		{"assistant", RoleAssistant},
		{"developer", RoleDeveloper},
		{"system", RoleDeveloper},
		{"bob", RoleDeveloper},
	}
	for _, tt := range tests {
		t.Run(tt.sender, func(t *testing.T) {
			assert.Equal(t, tt.want, RoleForSender(tt.sender, "alice"))
		})
	}
}

func TestTurnsFromLog_RoundTrip(t *testing.T) {
	log := []LogEntry{
		{Sender: "developer", Content: "you recommend problems"},
		{Sender: "alice", Content: "recommend easy problems"},
		{Sender: "assistant", Content: "try 1000 A+B"},
		{Sender: "alice", Content: "something harder"},
		{Sender: "assistant", Content: "try 1753"},
	}

	turns := TurnsFromLog(log, "alice")
	require.Len(t, turns, len(log))

	for i, turn := range turns {
		assert.Equal(t, log[i].Sender, SenderForRole(turn.Role, "alice"), "sender at %d", i)
		assert.Equal(t, log[i].Content, turn.Content, "content at %d", i)
		assert.Equal(t, EstimateTokens(log[i].Content), turn.TokenCount)
	}
}

func TestTurnsFromLog_Empty(t *testing.T) {
	turns := TurnsFromLog(nil, "alice")
	require.NotNil(t, turns)
	assert.Empty(t, turns)
}

func TestIsUntitled(t *testing.T) {
	assert.True(t, IsUntitled("untitled"))
	assert.True(t, IsUntitled("  Untitled \n"))
	assert.True(t, IsUntitled("UNTITLED"))
	assert.False(t, IsUntitled(""))
	assert.False(t, IsUntitled("untitled chat"))
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleDeveloper.Valid())
	assert.False(t, Role("system").Valid())
	assert.False(t, Role("").Valid())
}
