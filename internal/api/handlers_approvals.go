package api

import (
	"net/http"
	"strconv"

	"github.com/approval-sentinel/internal/storage"
	"github.com/approval-sentinel/internal/types"
)

// handleApprovalsFeed handles GET /api/v1/approvals.
// Supported filters: chain, kind, minRiskScore; pagination: skip, take.
func (s *Server) handleApprovalsFeed(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUser(w, r)
	if userID == "" {
		return
	}

	q := storage.FeedQuery{UserID: userID}

	if raw := r.URL.Query().Get("chain"); raw != "" {
		chain := types.Chain(raw)
		if !types.ValidChain(chain) {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Unknown chain", map[string]any{"chain": raw})
			return
		}
		q.Chain = &chain
	}

	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind := types.ApprovalKind(raw)
		if kind != types.KindERC20Approval && kind != types.KindApprovalForAll {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Unknown approval kind", map[string]any{"kind": raw})
			return
		}
		q.Kind = &kind
	}

	if raw := r.URL.Query().Get("minRiskScore"); raw != "" {
		minScore, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "minRiskScore must be an integer", nil)
			return
		}
		q.MinRiskScore = &minScore
	}

	if raw := r.URL.Query().Get("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "skip must be an integer", nil)
			return
		}
		q.Skip = skip
	}

	if raw := r.URL.Query().Get("take"); raw != "" {
		take, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "take must be an integer", nil)
			return
		}
		q.Take = take
	}

	events, err := s.approvalService.Feed(r.Context(), q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to query approvals", nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"approvals": events,
		"count":     len(events),
	})
}
