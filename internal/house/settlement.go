package house

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmint/auctionhouse/internal/domain"
)

// AcceptBid finalizes a closed auction: the escrowed winning bid is paid to
// the owner and the winner is approved as the token's transfer target
// through the guard. Ownership does not move here; the winner still claims
// the token through a guarded transfer, mirroring the pull-payment split
// applied to ownership. After acceptance the record is never mutated again.
func (h *House) AcceptBid(ctx context.Context, caller common.Address, tokenID uint64) error {
	release, err := h.guard.enter()
	if err != nil {
		return err
	}
	defer release()

	if caller != h.owner {
		return domain.ErrNotOwner
	}

	h.mu.RLock()
	a, ok := h.auctions[tokenID]
	if !ok {
		h.mu.RUnlock()
		return domain.ErrUnknownToken
	}
	now := h.clock.Now()
	if a.OpenAt(now) {
		h.mu.RUnlock()
		return domain.ErrAuctionStillOpen
	}
	if a.CurrentBidder == nil {
		h.mu.RUnlock()
		return domain.ErrNoBidReceived
	}
	if a.Settled {
		h.mu.RUnlock()
		return domain.ErrAlreadySettled
	}
	winner := *a.CurrentBidder
	payout := new(big.Int).Set(a.CurrentBid)
	h.mu.RUnlock()

	if err := h.bank.Pay(ctx, h.owner, payout); err != nil {
		return fmt.Errorf("house: pay out token %d: %w", tokenID, domain.ErrTransferFailed)
	}

	h.mu.Lock()
	a.Settled = true
	h.mu.Unlock()

	// Authorize the winner through the guarded approval path. The guard's
	// own checks (closed, winner-only) hold by construction here.
	if err := h.approve(h.owner, winner, tokenID); err != nil {
		return fmt.Errorf("house: authorize winner for token %d: %w", tokenID, err)
	}

	h.emit(domain.NewEvent(domain.EventBidAccepted, now).
		WithToken(tokenID).
		WithAccount(winner).
		WithAmount(payout))
	h.emit(domain.NewEvent(domain.EventWithdrawCompleted, now).
		WithToken(tokenID).
		WithAccount(h.owner).
		WithAmount(payout))
	return nil
}

// RenewAuction reopens a closed auction that never received a bid, resetting
// its start to now with the same duration. An auction that received a bid
// cannot be relisted this way, even after the bidder withdrew their credited
// stake; it must go through acceptance.
func (h *House) RenewAuction(caller common.Address, tokenID uint64) error {
	release, err := h.guard.enter()
	if err != nil {
		return err
	}
	defer release()

	if caller != h.owner {
		return domain.ErrNotOwner
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	a, ok := h.auctions[tokenID]
	if !ok {
		return domain.ErrUnknownToken
	}
	now := h.clock.Now()
	if a.OpenAt(now) {
		return domain.ErrAuctionStillOpen
	}
	if a.CurrentBidder != nil {
		return domain.ErrBidReceived
	}

	a.AuctionStart = now
	h.emit(domain.NewEvent(domain.EventTimeUpdated, now).
		WithToken(tokenID).
		WithRemaining(a.AuctionDuration))
	return nil
}
