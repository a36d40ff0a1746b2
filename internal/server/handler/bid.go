package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/openmint/auctionhouse/internal/service"
)

// BidHandler serves the bid endpoint. Bidders identify themselves by
// address in the request body; there is no per-account signature layer in
// front of the house.
type BidHandler struct {
	svc    *service.AuctionService
	logger *slog.Logger
}

// NewBidHandler creates a BidHandler.
func NewBidHandler(svc *service.AuctionService, logger *slog.Logger) *BidHandler {
	return &BidHandler{svc: svc, logger: logger.With(slog.String("handler", "bid"))}
}

// bidRequest is the body of POST /api/auctions/{id}/bids.
type bidRequest struct {
	Bidder    string `json:"bidder"`
	AmountWei string `json:"amount_wei"`
}

// Place validates, escrows, and records a bid.
// POST /api/auctions/{id}/bids
func (h *BidHandler) Place(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	var req bidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	bidder, err := parseAddress(req.Bidder)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bidder address")
		return
	}
	amount, err := parseWei(req.AmountWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount_wei")
		return
	}

	if err := h.svc.PlaceBid(r.Context(), tokenID, bidder, amount); err != nil {
		writeDomainError(w, err)
		return
	}

	a, err := h.svc.GetAuction(tokenID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAuctionView(a))
}
