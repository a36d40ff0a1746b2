package house

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmint/auctionhouse/internal/domain"
)

// PlaceBid validates and accepts a bid on the token's auction.
//
// Preconditions are checked in order and each failure aborts the call with
// zero effect: the bidder must not be the owner, the token must exist, and
// the auction must be open. The first bid must meet the start price; later
// bids must raise the current bid by at least the minimum increment.
//
// The bid amount is escrowed through the bank before any registry mutation.
// A bid landing inside the anti-snipe window extends the deadline so the
// full window remains; this repeats on every late bid. The outbid party is
// never paid synchronously, their stake is credited to the pending-returns
// ledger for withdrawal on their own initiative.
func (h *House) PlaceBid(ctx context.Context, tokenID uint64, bidder common.Address, amount *big.Int) error {
	release, err := h.guard.enter()
	if err != nil {
		return err
	}
	defer release()

	if bidder == h.owner {
		return domain.ErrOwnerCannotBid
	}

	h.mu.RLock()
	a, ok := h.auctions[tokenID]
	if !ok {
		h.mu.RUnlock()
		return domain.ErrUnknownToken
	}
	now := h.clock.Now()
	if !a.OpenAt(now) {
		h.mu.RUnlock()
		return domain.ErrAuctionFinished
	}

	if a.CurrentBidder == nil {
		if amount.Cmp(a.CurrentBid) < 0 {
			h.mu.RUnlock()
			return domain.ErrBidTooLow
		}
	} else {
		floor := new(big.Int).Add(a.CurrentBid, domain.MinBidIncrement)
		if amount.Cmp(floor) < 0 {
			h.mu.RUnlock()
			return domain.ErrBidTooLow
		}
	}
	h.mu.RUnlock()

	// First effect: the incoming payment moves into custody. Everything
	// after this point is pure registry mutation and cannot fail.
	if err := h.bank.Escrow(ctx, bidder, amount); err != nil {
		return fmt.Errorf("house: escrow bid for token %d: %w", tokenID, domain.ErrTransferFailed)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Anti-snipe: top the remaining time back up to the full window. The
	// deadline only ever moves forward.
	if remaining := a.Deadline().Sub(now); remaining < domain.AntiSnipeWindow {
		a.AuctionStart = now.Add(domain.AntiSnipeWindow - a.AuctionDuration)
		h.emit(domain.NewEvent(domain.EventTimeUpdated, now).
			WithToken(tokenID).
			WithRemaining(a.Deadline().Sub(now)))
	}

	if a.CurrentBidder != nil {
		prev := *a.CurrentBidder
		h.credit(prev, a.CurrentBid)
		h.emit(domain.NewEvent(domain.EventPendingCredited, now).
			WithToken(tokenID).
			WithAccount(prev).
			WithAmount(a.CurrentBid))
	}

	a.CurrentBid = new(big.Int).Set(amount)
	b := bidder
	a.CurrentBidder = &b

	h.emit(domain.NewEvent(domain.EventBidPlaced, now).
		WithToken(tokenID).
		WithAccount(bidder).
		WithAmount(amount))
	return nil
}

// credit adds amount to the account's pending-returns balance. Callers hold
// h.mu.
func (h *House) credit(account common.Address, amount *big.Int) {
	bal, ok := h.pending[account]
	if !ok {
		bal = new(big.Int)
		h.pending[account] = bal
	}
	bal.Add(bal, amount)
}
