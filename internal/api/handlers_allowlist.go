package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/approval-sentinel/internal/service"
	"github.com/approval-sentinel/internal/types"
)

// handleListAllowlist handles GET /api/v1/allowlist with an optional chain filter
func (s *Server) handleListAllowlist(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUser(w, r)
	if userID == "" {
		return
	}

	var chainFilter *types.Chain
	if raw := r.URL.Query().Get("chain"); raw != "" {
		chain := types.Chain(raw)
		if !types.ValidChain(chain) {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Unknown chain", map[string]any{"chain": raw})
			return
		}
		chainFilter = &chain
	}

	entries, err := s.allowlistService.List(r.Context(), userID, chainFilter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to list allowlist", nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleAddAllowlist handles POST /api/v1/allowlist
func (s *Server) handleAddAllowlist(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUser(w, r)
	if userID == "" {
		return
	}

	var req struct {
		Chain   types.Chain `json:"chain"`
		Spender string      `json:"spender"`
		Label   string      `json:"label"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if !types.ValidChain(req.Chain) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Unknown chain", map[string]any{"chain": req.Chain})
		return
	}
	if err := service.ValidateAddress(req.Spender); err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	if err := s.allowlistService.Add(r.Context(), userID, req.Chain, req.Spender, req.Label); err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"chain":   req.Chain,
		"spender": req.Spender,
	})
}

// handleRemoveAllowlist handles DELETE /api/v1/allowlist/{chain}/{spender}
func (s *Server) handleRemoveAllowlist(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUser(w, r)
	if userID == "" {
		return
	}

	vars := mux.Vars(r)
	chain := types.Chain(vars["chain"])
	spender := vars["spender"]

	if !types.ValidChain(chain) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Unknown chain", map[string]any{"chain": vars["chain"]})
		return
	}

	removed, err := s.allowlistService.Remove(r.Context(), userID, chain, spender)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}
	if removed == 0 {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Allowlist entry not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"chain":   chain,
		"spender": spender,
		"removed": removed,
	})
}
