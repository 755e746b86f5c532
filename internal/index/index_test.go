package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knoguchi/comparank/internal/model"
)

func testIndex() *Index {
	idx := New(nil)
	idx.Add(
		model.Document{ID: "d1", Content: "Laptops are portable. Laptops are light."},
		model.Document{ID: "d2", Content: "Desktops are powerful and cheap."},
		model.Document{ID: "d3", Content: "A laptop is more expensive than a desktop."},
	)
	return idx
}

func TestIndex_Statistics(t *testing.T) {
	idx := testIndex()

	assert.Equal(t, 3, idx.DocumentCount())
	assert.Equal(t, 2, idx.DocumentFrequency("laptop"))
	assert.Equal(t, 3, idx.CollectionFrequency("laptop"))
	assert.Equal(t, 0, idx.DocumentFrequency("tablet"))
	assert.Greater(t, idx.AverageDocumentLength(), 0.0)
	assert.Equal(t, idx.CollectionLength(), idx.DocumentLength("d1")+idx.DocumentLength("d2")+idx.DocumentLength("d3"))
}

func TestIndex_ReplaceAndDelete(t *testing.T) {
	idx := testIndex()

	idx.Add(model.Document{ID: "d1", Content: "Tablets only."})
	assert.Equal(t, 3, idx.DocumentCount())
	assert.Equal(t, 1, idx.DocumentFrequency("laptop"))
	assert.Equal(t, 1, idx.CollectionFrequency("laptop"))

	idx.Delete("d3")
	assert.Equal(t, 0, idx.DocumentFrequency("laptop"))
	_, ok := idx.Get("d3")
	assert.False(t, ok)

	idx.Reset()
	assert.Zero(t, idx.DocumentCount())
	assert.Zero(t, idx.CollectionLength())
}

func TestIndex_Search(t *testing.T) {
	idx := testIndex()

	for _, m := range []RetrievalModel{TFIDF, BM25, PL2, QL} {
		t.Run(string(m), func(t *testing.T) {
			results := idx.Search("laptop", 10, m)
			require.Len(t, results, 2)
			assert.Equal(t, "d1", results[0].ID, "two occurrences should win")
			for i, r := range results {
				assert.Equal(t, i+1, r.Rank)
			}
		})
	}
}

func TestIndex_SearchLimitsAndEmpty(t *testing.T) {
	idx := testIndex()

	assert.Len(t, idx.Search("laptop desktop", 1, BM25), 1)
	assert.Empty(t, idx.Search("the", 10, BM25))
	assert.Empty(t, idx.Search("laptop", 0, BM25))
}

func TestParseRetrievalModel(t *testing.T) {
	m, err := ParseRetrievalModel("")
	require.NoError(t, err)
	assert.Equal(t, BM25, m)

	m, err = ParseRetrievalModel("QLD")
	require.NoError(t, err)
	assert.Equal(t, QL, m)

	_, err = ParseRetrievalModel("dfr")
	assert.Error(t, err)
}

func TestIDF(t *testing.T) {
	idx := testIndex()
	assert.Zero(t, IDF(idx, "tablet"))
	assert.InDelta(t, 0.405, IDF(idx, "laptop"), 1e-3)
}
