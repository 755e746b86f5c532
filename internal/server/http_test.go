package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knoguchi/comparank/internal/analysis"
	"github.com/knoguchi/comparank/internal/auth"
	"github.com/knoguchi/comparank/internal/axiom"
	"github.com/knoguchi/comparank/internal/index"
	"github.com/knoguchi/comparank/internal/memory"
	"github.com/knoguchi/comparank/internal/model"
	"github.com/knoguchi/comparank/internal/reranker"
	"github.com/knoguchi/comparank/internal/rerankctx"
	"github.com/knoguchi/comparank/internal/service"
)

type fakeService struct {
	lastQuery   model.Query
	lastRanking model.Ranking
	lastOpts    service.Options
	err         error
	runs        map[string]memory.Run
}

func (f *fakeService) Search(_ context.Context, q model.Query, opts service.Options) (memory.Run, error) {
	f.lastQuery, f.lastOpts = q, opts
	if f.err != nil {
		return memory.Run{}, f.err
	}
	return memory.Run{ID: "search-run", Query: q}, nil
}

func (f *fakeService) Rerank(_ context.Context, q model.Query, ranking model.Ranking, opts service.Options) (memory.Run, error) {
	f.lastQuery, f.lastRanking, f.lastOpts = q, ranking, opts
	if f.err != nil {
		return memory.Run{}, f.err
	}
	reversed := ranking.Clone()
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	return memory.Run{ID: "rerank-run", Query: q, Ranking: reversed}, nil
}

func (f *fakeService) Run(id string) (memory.Run, bool) {
	run, ok := f.runs[id]
	return run, ok
}

const testAPIKey = "admin-key"

func newTestServer(t *testing.T, svc Service, checks map[string]ReadinessCheck) (http.Handler, *auth.JWTManager) {
	t.Helper()
	jwtManager := auth.NewJWTManager(auth.DefaultJWTConfig("test-secret"))
	s, err := NewHTTPServer(HTTPServerConfig{
		Service:     svc,
		JWT:         jwtManager,
		AdminAPIKey: testAPIKey,
		Checks:      checks,
	})
	require.NoError(t, err)
	return s.Handler(), jwtManager
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func bearer(t *testing.T, m *auth.JWTManager) string {
	t.Helper()
	token, _, err := m.GenerateToken("test")
	require.NoError(t, err)
	return token
}

func TestNewHTTPServer_RequiresCollaborators(t *testing.T) {
	_, err := NewHTTPServer(HTTPServerConfig{JWT: auth.NewJWTManager(auth.DefaultJWTConfig("s"))})
	assert.Error(t, err)
	_, err = NewHTTPServer(HTTPServerConfig{Service: &fakeService{}})
	assert.Error(t, err)
}

func TestHealthAndReadiness(t *testing.T) {
	h, _ := newTestServer(t, &fakeService{}, map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
	})
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", "", nil).Code)

	h, _ = newTestServer(t, &fakeService{}, map[string]ReadinessCheck{
		"qdrant": func(context.Context) error { return errors.New("connection refused") },
	})
	rec := do(t, h, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestIssueToken(t *testing.T) {
	h, m := newTestServer(t, &fakeService{}, nil)

	rec := do(t, h, http.MethodPost, "/v1/auth/token", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/token", strings.NewReader(`{"client":"cli"}`))
	req.Header.Set(auth.APIKeyHeader, testAPIKey)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	claims, err := m.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "cli", claims.Client)

	rec = do(t, h, http.MethodPost, "/v1/auth/refresh", resp.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/v1/auth/refresh", "", nil).Code)
}

func TestRerank(t *testing.T) {
	svc := &fakeService{}
	h, m := newTestServer(t, svc, nil)

	body := RerankRequest{
		Query: model.Query{ID: 7, Title: "cats or dogs", Objects: &model.ComparativeObjects{First: "cats", Second: "dogs"}},
		Ranking: model.Ranking{
			{Document: model.Document{ID: "a", Content: "cats"}, Rank: 1},
			{Document: model.Document{ID: "b", Content: "dogs"}, Rank: 2},
		},
		Options: OptionsRequest{Stages: "axiomatic, alternating-stance", Axioms: "argument-count:2,tfc1", Seed: 3},
	}

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/v1/rerank", "", body).Code)

	rec := do(t, h, http.MethodPost, "/v1/rerank", bearer(t, m), body)
	require.Equal(t, http.StatusOK, rec.Code)

	var run memory.Run
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&run))
	assert.Equal(t, "rerank-run", run.ID)
	assert.Equal(t, []string{"b", "a"}, run.Ranking.IDs())

	assert.Equal(t, 7, svc.lastQuery.ID)
	assert.Equal(t, []string{"axiomatic", "alternating-stance"}, svc.lastOpts.Stages)
	assert.Equal(t, "argument-count:2,tfc1", svc.lastOpts.Axioms.String())
	assert.Equal(t, uint64(3), svc.lastOpts.Seed)
}

func TestRerank_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   any
		status int
	}{
		{"malformed body", nil, "not an object", http.StatusBadRequest},
		{"unknown axiom", nil, RerankRequest{Query: model.Query{Title: "q"}, Options: OptionsRequest{Axioms: "nope"}}, http.StatusBadRequest},
		{"invalid request", service.ErrInvalidRequest, RerankRequest{Query: model.Query{Title: "q"}}, http.StatusBadRequest},
		{"internal", errors.New("tagger down"), RerankRequest{Query: model.Query{Title: "q"}}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, m := newTestServer(t, &fakeService{err: tt.err}, nil)
			rec := do(t, h, http.MethodPost, "/v1/rerank", bearer(t, m), tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "tagger down")
		})
	}
}

func TestRerank_RankingWithoutRanks(t *testing.T) {
	profile, err := axiom.ParseProfile("original")
	require.NoError(t, err)
	factory, err := reranker.NewFactory(reranker.PipelineConfig{
		Stages: []string{reranker.StageAxiomatic},
		Axioms: profile,
		Seed:   1,
	})
	require.NoError(t, err)
	rc, err := rerankctx.New(index.New(analysis.NewAnalyzer()), 0)
	require.NoError(t, err)
	svc, err := service.New(service.Config{Factory: factory, Context: rc})
	require.NoError(t, err)

	h, m := newTestServer(t, svc, nil)
	body := RerankRequest{
		Query: model.Query{ID: 1, Title: "cats or dogs"},
		Ranking: model.Ranking{
			{Document: model.Document{ID: "a", Content: "cats"}},
			{Document: model.Document{ID: "b", Content: "dogs"}},
		},
	}
	rec := do(t, h, http.MethodPost, "/v1/rerank", bearer(t, m), body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "same rank")
}

func TestSearch(t *testing.T) {
	svc := &fakeService{}
	h, m := newTestServer(t, svc, nil)

	rec := do(t, h, http.MethodPost, "/v1/search", bearer(t, m), SearchRequest{
		Query:   model.Query{ID: 1, Title: "python or java"},
		Options: OptionsRequest{NumHits: 5, SkipTagging: true},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, svc.lastOpts.NumHits)
	assert.True(t, svc.lastOpts.SkipTagging)

	svc.err = service.ErrNoSearcher
	rec = do(t, h, http.MethodPost, "/v1/search", bearer(t, m), SearchRequest{Query: model.Query{Title: "q"}})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestGetRun(t *testing.T) {
	svc := &fakeService{runs: map[string]memory.Run{"r1": {ID: "r1"}}}
	h, m := newTestServer(t, svc, nil)
	token := bearer(t, m)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/runs/r1", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/runs/missing", token, nil).Code)
}
