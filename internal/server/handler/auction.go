package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/openmint/auctionhouse/internal/domain"
	"github.com/openmint/auctionhouse/internal/service"
)

// AuctionHandler serves the auction lifecycle endpoints: mint, queries, and
// the owner-gated settlement and renewal operations.
type AuctionHandler struct {
	svc             *service.AuctionService
	defaultDuration time.Duration
	logger          *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler. defaultDuration is applied to
// mint requests that omit duration_seconds.
func NewAuctionHandler(svc *service.AuctionService, defaultDuration time.Duration, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{
		svc:             svc,
		defaultDuration: defaultDuration,
		logger:          logger.With(slog.String("handler", "auction")),
	}
}

// auctionView is the JSON representation of an auction record.
type auctionView struct {
	TokenID         uint64  `json:"token_id"`
	CurrentBid      string  `json:"current_bid"`
	CurrentBidder   *string `json:"current_bidder,omitempty"`
	AuctionStart    string  `json:"auction_start"`
	DurationSeconds int64   `json:"duration_seconds"`
	Deadline        string  `json:"deadline"`
	Settled         bool    `json:"settled"`
	MetadataURI     string  `json:"metadata_uri,omitempty"`
}

func toAuctionView(a domain.Auction) auctionView {
	v := auctionView{
		TokenID:         a.TokenID,
		CurrentBid:      a.CurrentBid.String(),
		AuctionStart:    a.AuctionStart.UTC().Format(time.RFC3339),
		DurationSeconds: int64(a.AuctionDuration / time.Second),
		Deadline:        a.Deadline().UTC().Format(time.RFC3339),
		Settled:         a.Settled,
		MetadataURI:     a.MetadataURI,
	}
	if a.CurrentBidder != nil {
		s := a.CurrentBidder.Hex()
		v.CurrentBidder = &s
	}
	return v
}

// mintRequest is the body of POST /api/auctions.
type mintRequest struct {
	TokenID         uint64 `json:"token_id"`
	MetadataURI     string `json:"metadata_uri"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// Mint creates a token and opens its auction. The route is owner-gated by
// the API key; the acting address is always the configured owner.
// POST /api/auctions
func (h *AuctionHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.DurationSeconds < 0 {
		writeError(w, http.StatusBadRequest, "duration_seconds must not be negative")
		return
	}

	duration := time.Duration(req.DurationSeconds) * time.Second
	if duration == 0 {
		duration = h.defaultDuration
	}
	if duration <= 0 {
		writeError(w, http.StatusBadRequest, "duration_seconds must be positive")
		return
	}
	if err := h.svc.Mint(r.Context(), h.svc.Owner(), req.TokenID, req.MetadataURI, duration); err != nil {
		writeDomainError(w, err)
		return
	}

	a, err := h.svc.GetAuction(req.TokenID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAuctionView(a))
}

// List returns every auction record.
// GET /api/auctions
func (h *AuctionHandler) List(w http.ResponseWriter, r *http.Request) {
	auctions := h.svc.ListAuctions()
	views := make([]auctionView, 0, len(auctions))
	for _, a := range auctions {
		views = append(views, toAuctionView(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"auctions": views,
		"count":    len(views),
	})
}

// Get returns one auction record.
// GET /api/auctions/{id}
func (h *AuctionHandler) Get(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	a, err := h.svc.GetAuction(tokenID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuctionView(a))
}

// Remaining reports the time left on an open auction. A finished auction
// answers 410, matching the core's RemainingTime contract.
// GET /api/auctions/{id}/remaining
func (h *AuctionHandler) Remaining(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	remaining, err := h.svc.RemainingTime(tokenID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token_id":          tokenID,
		"remaining_seconds": int64(remaining / time.Second),
	})
}

// Events returns one token's event history, newest first.
// GET /api/auctions/{id}/events
func (h *AuctionHandler) Events(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	events, err := h.svc.ListTokenEvents(r.Context(), tokenID, parseListOpts(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing events failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// AllEvents returns the full event feed, newest first.
// GET /api/events
func (h *AuctionHandler) AllEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context(), parseListOpts(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing events failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// Accept settles a closed auction as the owner.
// POST /api/auctions/{id}/accept
func (h *AuctionHandler) Accept(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	if err := h.svc.AcceptBid(r.Context(), h.svc.Owner(), tokenID); err != nil {
		writeDomainError(w, err)
		return
	}

	a, err := h.svc.GetAuction(tokenID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuctionView(a))
}

// Renew reopens a closed, never-bid-on auction as the owner.
// POST /api/auctions/{id}/renew
func (h *AuctionHandler) Renew(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	if err := h.svc.RenewAuction(r.Context(), h.svc.Owner(), tokenID); err != nil {
		writeDomainError(w, err)
		return
	}

	a, err := h.svc.GetAuction(tokenID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuctionView(a))
}
