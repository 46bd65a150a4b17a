package chromem_test

import (
	"context"
	"testing"

	"github.com/creastat/convstore/vectorstore"
	"github.com/creastat/convstore/vectorstore/chromem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *chromem.Store {
	t.Helper()
	s, err := chromem.New(chromem.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Upsert(context.Background(),
		chromem.Problem{ID: "1000", Title: "A+B", Level: 1, Vector: []float32{1, 0, 0}},
		chromem.Problem{ID: "1001", Title: "A-B", Level: 1, Vector: []float32{0.9, 0.1, 0}},
		chromem.Problem{ID: "1463", Title: "1로 만들기", Level: 8, Vector: []float32{0, 1, 0}},
		chromem.Problem{ID: "2839", Title: "설탕 배달", Level: 7, Vector: []float32{0.1, 0.9, 0}},
		chromem.Problem{ID: "1753", Title: "최단경로", Level: 12, Vector: []float32{0, 0, 1}},
	))
	return s
}

func TestSearch(t *testing.T) {
	s := newStore(t)
	assert.Equal(t, 5, s.Count())

	res, err := s.Search(context.Background(), []float32{1, 0, 0}, vectorstore.SearchFilter{}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "1000", res[0].ID)
	assert.Equal(t, "A+B", res[0].Content)
	assert.Equal(t, int64(1), res[0].Metadata["level"])
	assert.Equal(t, "1001", res[1].ID)
}

func TestSearch_Filters(t *testing.T) {
	s := newStore(t)

	res, err := s.Search(context.Background(), []float32{1, 0, 0}, vectorstore.SearchFilter{
		ExcludeIDs: []string{"1000"},
	}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "1001", res[0].ID)

	res, err = s.Search(context.Background(), []float32{1, 0, 0}, vectorstore.SearchFilter{
		Metadata: map[string]any{"level": 8},
	}, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "1463", res[0].ID)

	res, err = s.Search(context.Background(), []float32{1, 0, 0}, vectorstore.SearchFilter{MinScore: 0.5}, 5)
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func TestRecommend(t *testing.T) {
	s := newStore(t)

	res, err := s.Recommend(context.Background(), []string{"1463"}, vectorstore.SearchFilter{}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "2839", res[0].ID, "closest unsolved neighbour first")
	for _, r := range res {
		assert.NotEqual(t, "1463", r.ID, "positives are never recommended")
	}
}

func TestRecommend_UnknownPositives(t *testing.T) {
	s := newStore(t)

	res, err := s.Recommend(context.Background(), []string{"99999"}, vectorstore.SearchFilter{}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestUpsert_RequiresID(t *testing.T) {
	s, err := chromem.New(chromem.Config{})
	require.NoError(t, err)
	assert.Error(t, s.Upsert(context.Background(), chromem.Problem{Title: "x", Vector: []float32{1}}))
}
