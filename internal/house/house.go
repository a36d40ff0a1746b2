// Package house implements the timed-auction core: the per-token auction
// registry, the bid engine with its anti-snipe extension, the pull-payment
// ledger for outbid parties, owner-gated settlement, and the transfer guard
// that restricts token transfers to the auction winner after close.
//
// The house composes three capabilities it does not own: the token ledger
// (ownership bookkeeping), the bank (escrow and payouts), and the clock.
// All state-mutating operations run under a single mutual-exclusion guard;
// each either fully commits or leaves no effect.
package house

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmint/auctionhouse/internal/domain"
)

// Config carries the house's collaborators and identity.
type Config struct {
	// Owner is the immutable contract-owner account, fixed at construction.
	// It authorizes mint, accept, and renew, and receives settlement payouts.
	Owner common.Address

	Tokens domain.TokenLedger
	Bank   domain.Bank

	// Clock defaults to the system clock when nil.
	Clock Clock

	// Sink receives domain events; nil drops them.
	Sink domain.EventSink
}

// House owns the two append-in-place ledgers of the system: the auction
// registry (by token id) and the pending-returns ledger (by account).
// Neither entry is ever deleted, and neither map is ever handed out;
// accessors return copies.
type House struct {
	owner  common.Address
	tokens domain.TokenLedger
	bank   domain.Bank
	clock  Clock
	sink   domain.EventSink

	guard entryGuard

	mu       sync.RWMutex
	auctions map[uint64]*domain.Auction
	pending  map[common.Address]*big.Int
}

// New creates a House from the given configuration.
func New(cfg Config) (*House, error) {
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("house: token ledger is required")
	}
	if cfg.Bank == nil {
		return nil, fmt.Errorf("house: bank is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}
	return &House{
		owner:    cfg.Owner,
		tokens:   cfg.Tokens,
		bank:     cfg.Bank,
		clock:    clock,
		sink:     cfg.Sink,
		auctions: make(map[uint64]*domain.Auction),
		pending:  make(map[common.Address]*big.Int),
	}, nil
}

// Owner returns the contract-owner account.
func (h *House) Owner() common.Address { return h.owner }

// Mint creates the token in the ledger and opens its auction: one record per
// token, created exactly once, with the current bid primed at the start
// price and no bidder.
func (h *House) Mint(caller common.Address, tokenID uint64, metadataURI string, duration time.Duration) error {
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

	if _, ok := h.auctions[tokenID]; ok {
		return domain.ErrTokenExists
	}
	if err := h.tokens.Mint(h.owner, tokenID, metadataURI); err != nil {
		return fmt.Errorf("house: mint token %d: %w", tokenID, err)
	}

	now := h.clock.Now()
	h.auctions[tokenID] = &domain.Auction{
		TokenID:         tokenID,
		Owner:           h.owner,
		CurrentBid:      new(big.Int).Set(domain.StartPrice),
		CurrentBidder:   nil,
		AuctionStart:    now,
		AuctionDuration: duration,
		MetadataURI:     metadataURI,
	}

	h.emit(domain.NewEvent(domain.EventMinted, now).WithToken(tokenID).WithAccount(h.owner))
	h.emit(domain.NewEvent(domain.EventMetadataSet, now).WithToken(tokenID))
	h.emit(domain.NewEvent(domain.EventDurationSet, now).WithToken(tokenID).WithRemaining(duration))
	return nil
}

// IsOpen reports whether the token's auction deadline has not yet passed.
func (h *House) IsOpen(tokenID uint64) (bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	a, ok := h.auctions[tokenID]
	if !ok {
		return false, domain.ErrUnknownToken
	}
	return a.OpenAt(h.clock.Now()), nil
}

// RemainingTime returns the time left before the deadline. Unlike IsOpen it
// fails with ErrAuctionFinished once the deadline has passed; downstream
// observers depend on the failure signal, so the asymmetry is kept.
func (h *House) RemainingTime(tokenID uint64) (time.Duration, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	a, ok := h.auctions[tokenID]
	if !ok {
		return 0, domain.ErrUnknownToken
	}
	now := h.clock.Now()
	if !a.OpenAt(now) {
		return 0, domain.ErrAuctionFinished
	}
	return a.Deadline().Sub(now), nil
}

// HighestBid returns a copy of the token's current bid.
func (h *House) HighestBid(tokenID uint64) (*big.Int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	a, ok := h.auctions[tokenID]
	if !ok {
		return nil, domain.ErrUnknownToken
	}
	return new(big.Int).Set(a.CurrentBid), nil
}

// HighestBidder returns the current bidder, or nil when no bid has ever been
// accepted.
func (h *House) HighestBidder(tokenID uint64) (*common.Address, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	a, ok := h.auctions[tokenID]
	if !ok {
		return nil, domain.ErrUnknownToken
	}
	if a.CurrentBidder == nil {
		return nil, nil
	}
	addr := *a.CurrentBidder
	return &addr, nil
}

// Auction returns a copy of the token's auction record.
func (h *House) Auction(tokenID uint64) (domain.Auction, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	a, ok := h.auctions[tokenID]
	if !ok {
		return domain.Auction{}, domain.ErrUnknownToken
	}
	return a.Clone(), nil
}

// Auctions returns copies of every auction record.
func (h *House) Auctions() []domain.Auction {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]domain.Auction, 0, len(h.auctions))
	for _, a := range h.auctions {
		out = append(out, a.Clone())
	}
	return out
}

// PendingBalance returns the amount owed to the given account.
func (h *House) PendingBalance(account common.Address) *big.Int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if bal, ok := h.pending[account]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// PendingBalances returns a copy of the whole pending-returns ledger.
func (h *House) PendingBalances() map[common.Address]*big.Int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[common.Address]*big.Int, len(h.pending))
	for acct, bal := range h.pending {
		out[acct] = new(big.Int).Set(bal)
	}
	return out
}

// OutstandingLiability sums every unsettled bid-on auction's current bid plus
// every pending-ledger balance. At any point it must equal the bank's held
// funds; tests and the health endpoint check this conservation property.
func (h *House) OutstandingLiability() *big.Int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := new(big.Int)
	for _, a := range h.auctions {
		if a.CurrentBidder != nil && !a.Settled {
			total.Add(total, a.CurrentBid)
		}
	}
	for _, bal := range h.pending {
		total.Add(total, bal)
	}
	return total
}

// LoadAuction installs a persisted record during state restore. It must not
// be called once the house is serving traffic.
func (h *House) LoadAuction(a domain.Auction) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.auctions[a.TokenID]; ok {
		return domain.ErrTokenExists
	}
	c := a.Clone()
	h.auctions[a.TokenID] = &c
	return nil
}

// LoadPending installs a persisted pending balance during state restore.
func (h *House) LoadPending(account common.Address, balance *big.Int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.pending[account] = new(big.Int).Set(balance)
}

func (h *House) emit(e domain.Event) {
	if h.sink != nil {
		h.sink.Emit(e)
	}
}
