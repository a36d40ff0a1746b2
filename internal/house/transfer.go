package house

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmint/auctionhouse/internal/domain"
)

// The transfer guard: every transfer-capable primitive of the token ledger
// is reachable only through these wrappers, which require the auction to be
// closed and the destination to be the winning bidder before delegating.
// Ownership bookkeeping itself stays in the ledger.

// TransferFrom moves the token, winner-only and only after close.
func (h *House) TransferFrom(caller, from, to common.Address, tokenID uint64) error {
	release, err := h.guard.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := h.checkTransfer(to, tokenID); err != nil {
		return err
	}
	if err := h.tokens.TransferFrom(caller, from, to, tokenID); err != nil {
		return fmt.Errorf("house: transfer token %d: %w", tokenID, err)
	}
	h.recordTransfer(tokenID, to)
	return nil
}

// SafeTransferFrom is the checked transfer variant; the guard applies the
// same closed-auction, winner-only rule before delegating.
func (h *House) SafeTransferFrom(caller, from, to common.Address, tokenID uint64, data []byte) error {
	release, err := h.guard.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := h.checkTransfer(to, tokenID); err != nil {
		return err
	}
	if err := h.tokens.SafeTransferFrom(caller, from, to, tokenID, data); err != nil {
		return fmt.Errorf("house: safe transfer token %d: %w", tokenID, err)
	}
	h.recordTransfer(tokenID, to)
	return nil
}

// Approve authorizes a single-token transfer target, winner-only and only
// after close.
func (h *House) Approve(caller, to common.Address, tokenID uint64) error {
	release, err := h.guard.enter()
	if err != nil {
		return err
	}
	defer release()

	return h.approve(caller, to, tokenID)
}

// SetApprovalForAll is permanently disabled: an operator approved for all
// tokens could bypass the winner-restricted transfer rule entirely.
func (h *House) SetApprovalForAll(common.Address, common.Address, bool) error {
	return domain.ErrFunctionDisabled
}

// approve runs the guard checks and delegates to the ledger. Settlement
// calls it directly while already holding the entry guard.
func (h *House) approve(caller, to common.Address, tokenID uint64) error {
	if err := h.checkTransfer(to, tokenID); err != nil {
		return err
	}
	if err := h.tokens.Approve(caller, to, tokenID); err != nil {
		return fmt.Errorf("house: approve token %d: %w", tokenID, err)
	}
	return nil
}

// recordTransfer mirrors a completed ledger transfer onto the auction
// record, so ownership survives a state restore, and announces it.
func (h *House) recordTransfer(tokenID uint64, to common.Address) {
	h.mu.Lock()
	h.auctions[tokenID].Owner = to
	now := h.clock.Now()
	h.mu.Unlock()

	h.emit(domain.NewEvent(domain.EventTransferred, now).
		WithToken(tokenID).
		WithAccount(to))
}

// checkTransfer enforces the guard rule: closed auction, destination equal
// to the winning bidder. A never-bid-on token has no winner, so every
// destination is rejected.
func (h *House) checkTransfer(to common.Address, tokenID uint64) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	a, ok := h.auctions[tokenID]
	if !ok {
		return domain.ErrUnknownToken
	}
	if a.OpenAt(h.clock.Now()) {
		return domain.ErrAuctionStillOpen
	}
	if a.CurrentBidder == nil || to != *a.CurrentBidder {
		return domain.ErrNotHighestBidder
	}
	return nil
}
