package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/approval-sentinel/internal/types"
)

// handleRegisterWallet handles POST /api/v1/wallets
func (s *Server) handleRegisterWallet(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUser(w, r)
	if userID == "" {
		return
	}

	var req struct {
		Chain   types.Chain `json:"chain"`
		Address string      `json:"address"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if !types.ValidChain(req.Chain) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Unknown chain", map[string]any{"chain": req.Chain})
		return
	}

	wallet, err := s.walletService.Register(r.Context(), userID, req.Chain, req.Address)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusCreated, wallet)
}

// handleListWallets handles GET /api/v1/wallets
func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUser(w, r)
	if userID == "" {
		return
	}

	wallets, err := s.walletService.ListByUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to list wallets", nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"wallets": wallets,
		"count":   len(wallets),
	})
}

// handleSetWalletStatus handles PATCH /api/v1/wallets/{id}/status
func (s *Server) handleSetWalletStatus(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUser(w, r)
	if userID == "" {
		return
	}

	walletID := mux.Vars(r)["id"]
	if walletID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Wallet ID required", nil)
		return
	}

	var req struct {
		Status types.WalletStatus `json:"status"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Status != types.WalletStatusActive && req.Status != types.WalletStatusDisabled {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Status must be ACTIVE or DISABLED", nil)
		return
	}

	if err := s.walletService.SetStatus(r.Context(), userID, walletID, req.Status); err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"walletId": walletID,
		"status":   req.Status,
	})
}
