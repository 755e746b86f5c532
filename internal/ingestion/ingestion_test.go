package ingestion

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knoguchi/comparank/internal/analysis"
	"github.com/knoguchi/comparank/internal/index"
	"github.com/knoguchi/comparank/internal/model"
	"github.com/knoguchi/comparank/internal/vectorstore"
)

type memoryPassages struct {
	mu      sync.Mutex
	docs    map[string]model.Document
	upserts int
}

func newMemoryPassages() *memoryPassages {
	return &memoryPassages{docs: make(map[string]model.Document)}
}

func (m *memoryPassages) Upsert(_ context.Context, docs []model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return nil
}

func (m *memoryPassages) Get(_ context.Context, id string) (model.Document, error) {
	return m.docs[id], nil
}

func (m *memoryPassages) GetMany(_ context.Context, ids []string) (map[string]model.Document, error) {
	out := make(map[string]model.Document)
	for _, id := range ids {
		if d, ok := m.docs[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func (m *memoryPassages) Each(_ context.Context, fn func(model.Document) error) error {
	for _, d := range m.docs {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryPassages) Count(context.Context) (int, error) { return len(m.docs), nil }

type countingEmbedder struct{ texts int }

func (e *countingEmbedder) Embed(context.Context, string) ([]float32, error) { return []float32{1}, nil }

func (e *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.texts += len(texts)
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1}
	}
	return out, nil
}

func (e *countingEmbedder) Dimension() int    { return 1 }
func (e *countingEmbedder) ModelName() string { return "counting" }

type memoryVectors struct {
	vectorstore.VectorStore
	points []vectorstore.Passage
}

func (m *memoryVectors) Upsert(_ context.Context, passages []vectorstore.Passage) error {
	m.points = append(m.points, passages...)
	return nil
}

const corpus = `{"id": "a", "contents": "Laptops are portable.", "source": "web", "score": 3}
{"id": "b", "contents": "Desktops are fast."}

{"id": "empty", "contents": "   "}
{"id": 7, "text": "Numbers work as ids.", "tags": ["x"]}
`

func TestLoader_Load(t *testing.T) {
	passages := newMemoryPassages()
	idx := index.New(analysis.NewAnalyzer())
	emb := &countingEmbedder{}
	vectors := &memoryVectors{}

	loader := NewLoader(LoaderConfig{
		Passages:      passages,
		Index:         idx,
		Embedder:      emb,
		Vectors:       vectors,
		Analyzer:      analysis.NewAnalyzer(),
		DefaultFields: map[string]string{"corpus": "test", "source": "default"},
		BatchSize:     2,
	})

	stats, err := loader.Load(context.Background(), strings.NewReader(corpus))
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Records)
	assert.Equal(t, 3, stats.Passages)
	assert.Equal(t, 1, stats.Skipped)

	assert.Equal(t, 2, passages.upserts)
	assert.Equal(t, "web", passages.docs["a"].Fields["source"], "own fields win over defaults")
	assert.Equal(t, "test", passages.docs["b"].Fields["corpus"])
	assert.Equal(t, "Numbers work as ids.", passages.docs["7"].Content)

	assert.Equal(t, 3, idx.DocumentCount())
	assert.Equal(t, 3, emb.texts)
	require.Len(t, vectors.points, 3)
	assert.NotNil(t, vectors.points[0].SparseVector)
}

func TestLoader_InvalidRecord(t *testing.T) {
	loader := NewLoader(LoaderConfig{})
	_, err := loader.Load(context.Background(), strings.NewReader("{\"contents\": \"no id\"}\n"))
	require.ErrorIs(t, err, ErrInvalidRecord)
	assert.Contains(t, err.Error(), "line 1")

	_, err = loader.Load(context.Background(), strings.NewReader("not json\n"))
	require.ErrorIs(t, err, ErrInvalidRecord)
}

func TestLoader_RebuildIndex(t *testing.T) {
	passages := newMemoryPassages()
	require.NoError(t, passages.Upsert(context.Background(), []model.Document{
		{ID: "a", Content: "laptops"}, {ID: "b", Content: "desktops"}, {ID: "c", Content: "tablets"},
	}))
	idx := index.New(analysis.NewAnalyzer())

	n, err := NewLoader(LoaderConfig{Passages: passages, Index: idx, BatchSize: 2}).RebuildIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, idx.DocumentCount())
}

func TestParseRecord(t *testing.T) {
	doc, err := ParseRecord([]byte(`{"id": "x", "contents": "first", "text": "second", "stance": true}`))
	require.NoError(t, err)
	assert.Equal(t, "first", doc.Content, "contents takes precedence")
	assert.Equal(t, map[string]string{"stance": "true"}, doc.Fields)
}

func TestSplitter(t *testing.T) {
	s := NewSplitter(SplitterConfig{TargetWords: 4, MaxWords: 6})

	short := model.Document{ID: "s", Content: "One two three."}
	assert.Equal(t, []model.Document{short}, s.Split(short))

	long := model.Document{
		ID:      "d",
		Content: "One two three. Four five six. Seven eight nine ten eleven twelve thirteen fourteen. End.",
		Fields:  map[string]string{"source": "web"},
	}
	passages := s.Split(long)
	require.Len(t, passages, 4)
	assert.Equal(t, "d___1", passages[0].ID)
	assert.Equal(t, "One two three. Four five six.", passages[0].Content)
	assert.Equal(t, "Seven eight nine ten", passages[1].Content)
	assert.Equal(t, "eleven twelve thirteen fourteen.", passages[2].Content)
	assert.Equal(t, "End.", passages[3].Content)
	assert.Equal(t, "d", passages[3].Fields["document_id"])
	assert.Equal(t, "web", passages[3].Fields["source"])
	assert.NotContains(t, long.Fields, "document_id", "source fields are copied")
}
