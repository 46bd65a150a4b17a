package session

import (
	"testing"

	"github.com/creastat/convstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshal(t *testing.T) {
	s := &Session{
		ConversationID: "c1",
		OwnerHandle:    "alice",
		Profile:        convstore.Profile{SkillLevel: "gold", InterestTags: []string{"greedy"}},
		Title:          "untitled",
	}
	s.AddTurn(convstore.RoleDeveloper, "persona")
	s.AddTurn(convstore.RoleUser, "hi")

	raw, err := Marshal(s)
	require.NoError(t, err)

	got, err := Unmarshal("c1", raw)
	require.NoError(t, err)

	assert.Equal(t, s.Turns, got.Turns)
	assert.Equal(t, s.Profile, got.Profile)
	assert.Equal(t, []convstore.Candidate{}, got.Candidates, "nil candidates are written as an empty list")
}

func TestMarshal_EmptySlicesStayValid(t *testing.T) {
	raw, err := Marshal(&Session{ConversationID: "c1", OwnerHandle: "alice", Title: "untitled"})
	require.NoError(t, err)

	got, err := Unmarshal("c1", raw)
	require.NoError(t, err)
	assert.Empty(t, got.Turns)
	assert.Empty(t, got.Candidates)
}

func TestUnmarshal_ProfileOptional(t *testing.T) {
	got, err := Unmarshal("c1", []byte(`{"conversation_id":"c1","owner_handle":"alice","title":"t","turns":[],"candidates":[]}`))
	require.NoError(t, err)
	assert.Equal(t, convstore.Profile{}, got.Profile)
}

func TestUnmarshal_Corruption(t *testing.T) {
	tests := map[string]string{
		"garbage":       `not json`,
		"missing id":    `{"owner_handle":"alice","title":"t","turns":[],"candidates":[]}`,
		"missing title": `{"conversation_id":"c1","owner_handle":"alice","turns":[],"candidates":[]}`,
		"empty owner":   `{"conversation_id":"c1","owner_handle":"","title":"t","turns":[],"candidates":[]}`,
		"wrong type":    `{"conversation_id":"c1","owner_handle":"alice","title":"t","turns":"oops","candidates":[]}`,
		"wrong key":     `{"conversation_id":"c9","owner_handle":"alice","title":"t","turns":[],"candidates":[]}`,
		"bad role":      `{"conversation_id":"c1","owner_handle":"alice","title":"t","turns":[{"role":"","content":"x"}],"candidates":[]}`,
	}
	for name, entry := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal("c1", []byte(entry))
			assert.ErrorIs(t, err, convstore.ErrCacheReadCorruption)
		})
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "session:conv:abc", Key("abc"))
}

func TestClone_IsDeep(t *testing.T) {
	s := &Session{
		Profile:    convstore.Profile{InterestTags: []string{"dp"}},
		Candidates: []convstore.Candidate{{ID: "1000"}},
	}
	s.AddTurn(convstore.RoleUser, "hi")

	c := s.Clone()
	c.Profile.InterestTags[0] = "graphs"
	c.Candidates[0].ID = "2000"
	c.Turns[0].Content = "changed"

	assert.Equal(t, "dp", s.Profile.InterestTags[0])
	assert.Equal(t, "1000", s.Candidates[0].ID)
	assert.Equal(t, "hi", s.Turns[0].Content)
}
