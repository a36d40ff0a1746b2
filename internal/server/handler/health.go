package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/openmint/auctionhouse/internal/domain"
	"github.com/openmint/auctionhouse/internal/service"
)

// HealthHandler serves the health-check endpoint, including the
// money-conservation check over the bank and the house's ledgers.
type HealthHandler struct {
	svc    *service.AuctionService
	bank   domain.Bank
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(svc *service.AuctionService, bank domain.Bank, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{svc: svc, bank: bank, logger: logger.With(slog.String("handler", "health"))}
}

// HealthCheck reports liveness plus the conservation property: custodied
// funds must equal unsettled bids plus pending balances. A mismatch answers
// 503; it means the ledgers and the bank disagree.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	if err := h.svc.CheckConservation(r.Context(), h.bank); err != nil {
		h.logger.ErrorContext(r.Context(), "conservation check failed",
			slog.String("error", err.Error()),
		)
		status = "conservation violated"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
