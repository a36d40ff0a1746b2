package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/openmint/auctionhouse/internal/service"
)

// PendingHandler serves the pull-payment endpoints: withdrawal and balance
// queries.
type PendingHandler struct {
	svc    *service.AuctionService
	logger *slog.Logger
}

// NewPendingHandler creates a PendingHandler.
func NewPendingHandler(svc *service.AuctionService, logger *slog.Logger) *PendingHandler {
	return &PendingHandler{svc: svc, logger: logger.With(slog.String("handler", "pending"))}
}

// withdrawRequest is the body of POST /api/withdrawals.
type withdrawRequest struct {
	Account string `json:"account"`
}

// Withdraw pays out the account's pending balance.
// POST /api/withdrawals
func (h *PendingHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	account, err := parseAddress(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account address")
		return
	}

	paid, err := h.svc.WithdrawPending(r.Context(), account)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"account":       account.Hex(),
		"withdrawn_wei": paid.String(),
	})
}

// Balance returns the amount owed to an account.
// GET /api/accounts/{address}/pending
func (h *PendingHandler) Balance(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account address")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"account":     account.Hex(),
		"balance_wei": h.svc.PendingBalance(account).String(),
	})
}
