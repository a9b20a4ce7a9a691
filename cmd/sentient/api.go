package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/sentient/pkg/inference/engine"
	"github.com/go-go-golems/sentient/pkg/inference/session"
)

const maxRequestBytes = 1 << 20

type AskRequest struct {
	Prompt string `json:"prompt"`
}

type AskResponse struct {
	Answer string `json:"answer"`
}

type APIHandler struct {
	Asker session.Asker
}

func (h *APIHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ask", h.AskHandler)
	mux.HandleFunc("/health", h.HealthHandler)
	return mux
}

func (h *APIHandler) AskHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AskRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		http.Error(w, "missing prompt", http.StatusBadRequest)
		return
	}

	res, err := h.Asker.Ask(r.Context(), req.Prompt)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidInput) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Msg("ask failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(AskResponse{Answer: res.Answer}); err != nil {
		log.Warn().Err(err).Msg("failed to write answer")
	}
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
