package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/knoguchi/comparank/internal/auth"
	"github.com/knoguchi/comparank/internal/axiom"
	"github.com/knoguchi/comparank/internal/model"
	"github.com/knoguchi/comparank/internal/reranker"
	"github.com/knoguchi/comparank/internal/service"
)

const (
	maxBodyBytes  = 16 << 20
	defaultClient = "admin"
)

type handlers struct {
	service     Service
	jwt         *auth.JWTManager
	adminAPIKey string
	logger      *slog.Logger
}

// OptionsRequest overrides the pipeline configuration for one request. Stages and Axioms
// use the same syntax as the RERANKERS and AXIOMS settings.
type OptionsRequest struct {
	NumHits     int    `json:"num_hits,omitempty"`
	Stages      string `json:"stages,omitempty"`
	Axioms      string `json:"axioms,omitempty"`
	Seed        uint64 `json:"seed,omitempty"`
	SkipTagging bool   `json:"skip_tagging,omitempty"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query   model.Query    `json:"query"`
	Options OptionsRequest `json:"options"`
}

// RerankRequest is the body of POST /v1/rerank.
type RerankRequest struct {
	Query   model.Query    `json:"query"`
	Ranking model.Ranking  `json:"ranking"`
	Options OptionsRequest `json:"options"`
}

// TokenRequest is the optional body of POST /v1/auth/token.
type TokenRequest struct {
	Client string `json:"client"`
}

// TokenResponse carries an issued token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (o OptionsRequest) toOptions() (service.Options, error) {
	opts := service.Options{
		NumHits:     o.NumHits,
		Stages:      reranker.ParseStages(o.Stages),
		Seed:        o.Seed,
		SkipTagging: o.SkipTagging,
	}
	if o.NumHits < 0 {
		return opts, fmt.Errorf("%w: num_hits must not be negative", service.ErrInvalidRequest)
	}
	if o.Axioms != "" {
		profile, err := axiom.ParseProfile(o.Axioms)
		if err != nil {
			return opts, fmt.Errorf("%w: %w", service.ErrInvalidRequest, err)
		}
		opts.Axioms = profile
	}
	return opts, nil
}

func (h *handlers) issueToken(w http.ResponseWriter, r *http.Request) {
	if !auth.CheckAPIKey(h.adminAPIKey, r.Header.Get(auth.APIKeyHeader)) {
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return
	}

	var req TokenRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Client == "" {
		req.Client = defaultClient
	}

	token, expiresAt, err := h.jwt.GenerateToken(req.Client)
	if err != nil {
		h.logger.Error("failed to issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token, ExpiresAt: expiresAt})
}

func (h *handlers) refreshToken(w http.ResponseWriter, r *http.Request) {
	old, err := auth.BearerToken(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	token, expiresAt, err := h.jwt.RefreshToken(old)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token, ExpiresAt: expiresAt})
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := req.Options.toOptions()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	run, err := h.service.Search(r.Context(), req.Query, opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *handlers) rerank(w http.ResponseWriter, r *http.Request) {
	var req RerankRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := req.Options.toOptions()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	run, err := h.service.Rerank(r.Context(), req.Query, req.Ranking, opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *handlers) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, ok := h.service.Run(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNoSearcher):
		writeError(w, http.StatusNotImplemented, err.Error())
	default:
		h.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
