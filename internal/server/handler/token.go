package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/openmint/auctionhouse/internal/domain"
	"github.com/openmint/auctionhouse/internal/service"
)

// TokenHandler serves token-ownership endpoints. All transfer-capable
// operations go through the house's guard; raw ledger access is read-only.
type TokenHandler struct {
	svc    *service.AuctionService
	logger *slog.Logger
}

// NewTokenHandler creates a TokenHandler.
func NewTokenHandler(svc *service.AuctionService, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{svc: svc, logger: logger.With(slog.String("handler", "token"))}
}

// Get returns the token's ownership state.
// GET /api/tokens/{id}
func (h *TokenHandler) Get(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	tokens := h.svc.Tokens()
	owner, err := tokens.OwnerOf(tokenID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	uri, err := tokens.TokenURI(tokenID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	approved, err := tokens.GetApproved(tokenID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token_id":  tokenID,
		"owner":     owner.Hex(),
		"token_uri": uri,
		"approved":  approved.Hex(),
	})
}

// transferRequest is the body of POST /api/tokens/{id}/transfer.
type transferRequest struct {
	Caller string `json:"caller"`
	From   string `json:"from"`
	To     string `json:"to"`
	Safe   bool   `json:"safe"`
	Data   string `json:"data,omitempty"`
}

// Transfer moves the token through the guard: closed auction, winner-only.
// POST /api/tokens/{id}/transfer
func (h *TokenHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from address")
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to address")
		return
	}

	if req.Safe {
		err = h.svc.SafeTransferFrom(r.Context(), caller, from, to, tokenID, []byte(req.Data))
	} else {
		err = h.svc.TransferFrom(r.Context(), caller, from, to, tokenID)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	tokenOwner, err := h.svc.Tokens().OwnerOf(tokenID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token_id": tokenID,
		"owner":    tokenOwner.Hex(),
	})
}

// approveRequest is the body of POST /api/tokens/{id}/approve.
type approveRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
}

// Approve authorizes a transfer target through the guard.
// POST /api/tokens/{id}/approve
func (h *TokenHandler) Approve(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to address")
		return
	}

	if err := h.svc.Approve(r.Context(), caller, to, tokenID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token_id": tokenID,
		"approved": to.Hex(),
	})
}

// Operators always rejects: blanket operator approval is permanently
// disabled because it would bypass the winner-only transfer rule.
// POST /api/tokens/{id}/operators
func (h *TokenHandler) Operators(w http.ResponseWriter, r *http.Request) {
	writeDomainError(w, domain.ErrFunctionDisabled)
}
