// Package service orchestrates the auction core against persistence, the
// signal bus, and operator notifications. The house stays the source of
// truth; stores are write-through copies and event delivery is best effort.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmint/auctionhouse/internal/domain"
	"github.com/openmint/auctionhouse/internal/house"
	"github.com/openmint/auctionhouse/internal/notify"
)

// EventChannel is the signal-bus channel carrying every auction event.
// Per-token events are additionally published on EventChannel.<token id>.
const EventChannel = "auction.events"

// Config carries the AuctionService's dependencies. Bus and Notifier are
// optional; stores are required.
type Config struct {
	Owner  common.Address
	Tokens domain.TokenLedger
	Bank   domain.Bank
	Clock  house.Clock

	Auctions domain.AuctionStore
	Pending  domain.PendingStore
	Events   domain.EventStore

	Bus      domain.SignalBus
	Notifier *notify.Notifier
	Logger   *slog.Logger
}

// AuctionService wraps the house behind a mutex so concurrent API calls are
// serialized instead of spuriously rejected by the house's entry guard,
// which exists to catch nested calls, not parallel ones.
type AuctionService struct {
	house    *house.House
	tokens   domain.TokenLedger
	auctions domain.AuctionStore
	pending  domain.PendingStore
	events   domain.EventStore
	bus      domain.SignalBus
	notifier *notify.Notifier
	logger   *slog.Logger

	mu     sync.Mutex
	buffer []domain.Event // events collected during the current operation
}

// New constructs the house with the service installed as its event sink.
func New(cfg Config) (*AuctionService, error) {
	if cfg.Auctions == nil || cfg.Pending == nil || cfg.Events == nil {
		return nil, fmt.Errorf("service: auction, pending, and event stores are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &AuctionService{
		tokens:   cfg.Tokens,
		auctions: cfg.Auctions,
		pending:  cfg.Pending,
		events:   cfg.Events,
		bus:      cfg.Bus,
		notifier: cfg.Notifier,
		logger:   logger.With(slog.String("component", "auction_service")),
	}

	h, err := house.New(house.Config{
		Owner:  cfg.Owner,
		Tokens: cfg.Tokens,
		Bank:   cfg.Bank,
		Clock:  cfg.Clock,
		// The sink runs synchronously inside house operations, which the
		// service serializes under s.mu, so the buffer needs no extra lock.
		Sink: domain.EventSinkFunc(func(e domain.Event) {
			s.buffer = append(s.buffer, e)
		}),
	})
	if err != nil {
		return nil, err
	}
	s.house = h
	return s, nil
}

// House exposes the underlying core for read-only callers (the health
// endpoint's conservation check).
func (s *AuctionService) House() *house.House { return s.house }

// Owner returns the contract-owner account.
func (s *AuctionService) Owner() common.Address { return s.house.Owner() }

// Restore reloads the house from the stores. Call it once at startup,
// before the service begins serving traffic.
func (s *AuctionService) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auctions, err := s.auctions.List(ctx, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("service: restore auctions: %w", err)
	}
	for _, a := range auctions {
		if err := s.house.LoadAuction(a); err != nil {
			return fmt.Errorf("service: restore auction %d: %w", a.TokenID, err)
		}
		if err := s.restoreToken(a); err != nil {
			return fmt.Errorf("service: restore token %d: %w", a.TokenID, err)
		}
	}

	balances, err := s.pending.All(ctx)
	if err != nil {
		return fmt.Errorf("service: restore pending: %w", err)
	}
	for acct, bal := range balances {
		s.house.LoadPending(acct, bal)
	}

	s.logger.InfoContext(ctx, "state restored",
		slog.Int("auctions", len(auctions)),
		slog.Int("pending_accounts", len(balances)),
	)
	return nil
}

// restoreToken rebuilds the ledger entry for a persisted record: the token
// is minted back to its recorded owner, and a settled-but-unclaimed token
// gets its winner re-approved so the claim still goes through after a
// restart.
func (s *AuctionService) restoreToken(a domain.Auction) error {
	if s.tokens.Exists(a.TokenID) {
		return nil
	}

	tokenOwner := a.Owner
	if tokenOwner == (common.Address{}) {
		// Rows written before the owner column was recorded.
		tokenOwner = s.house.Owner()
	}
	if err := s.tokens.Mint(tokenOwner, a.TokenID, a.MetadataURI); err != nil {
		return err
	}

	if a.Settled && a.CurrentBidder != nil && tokenOwner != *a.CurrentBidder {
		if err := s.tokens.Approve(tokenOwner, *a.CurrentBidder, a.TokenID); err != nil {
			return err
		}
	}
	return nil
}

// Mint creates a token and opens its auction.
func (s *AuctionService) Mint(ctx context.Context, caller common.Address, tokenID uint64, metadataURI string, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = s.buffer[:0]
	if err := s.house.Mint(caller, tokenID, metadataURI, duration); err != nil {
		return err
	}
	s.flush(ctx)
	return nil
}

// PlaceBid validates, escrows, and records a bid.
func (s *AuctionService) PlaceBid(ctx context.Context, tokenID uint64, bidder common.Address, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = s.buffer[:0]
	if err := s.house.PlaceBid(ctx, tokenID, bidder, amount); err != nil {
		return err
	}
	s.flush(ctx)
	return nil
}

// WithdrawPending pays out the caller's pull-payment balance.
func (s *AuctionService) WithdrawPending(ctx context.Context, caller common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = s.buffer[:0]
	paid, err := s.house.WithdrawPending(ctx, caller)
	if err != nil {
		return nil, err
	}
	s.flush(ctx)
	return paid, nil
}

// AcceptBid settles a closed auction.
func (s *AuctionService) AcceptBid(ctx context.Context, caller common.Address, tokenID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = s.buffer[:0]
	if err := s.house.AcceptBid(ctx, caller, tokenID); err != nil {
		return err
	}
	s.flush(ctx)
	return nil
}

// RenewAuction reopens a closed, never-bid-on auction.
func (s *AuctionService) RenewAuction(ctx context.Context, caller common.Address, tokenID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = s.buffer[:0]
	if err := s.house.RenewAuction(caller, tokenID); err != nil {
		return err
	}
	s.flush(ctx)
	return nil
}

// TransferFrom moves a token through the house's transfer guard.
func (s *AuctionService) TransferFrom(ctx context.Context, caller, from, to common.Address, tokenID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = s.buffer[:0]
	if err := s.house.TransferFrom(caller, from, to, tokenID); err != nil {
		return err
	}
	s.flush(ctx)
	return nil
}

// SafeTransferFrom is the checked transfer variant.
func (s *AuctionService) SafeTransferFrom(ctx context.Context, caller, from, to common.Address, tokenID uint64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = s.buffer[:0]
	if err := s.house.SafeTransferFrom(caller, from, to, tokenID, data); err != nil {
		return err
	}
	s.flush(ctx)
	return nil
}

// Approve authorizes a transfer target through the house's guard.
func (s *AuctionService) Approve(ctx context.Context, caller, to common.Address, tokenID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = s.buffer[:0]
	if err := s.house.Approve(caller, to, tokenID); err != nil {
		return err
	}
	s.flush(ctx)
	return nil
}

// SetApprovalForAll always fails; the operation is permanently disabled.
func (s *AuctionService) SetApprovalForAll(_ context.Context, caller, operator common.Address, approved bool) error {
	return s.house.SetApprovalForAll(caller, operator, approved)
}

// GetAuction returns one auction record from the core.
func (s *AuctionService) GetAuction(tokenID uint64) (domain.Auction, error) {
	return s.house.Auction(tokenID)
}

// ListAuctions returns every auction record from the core.
func (s *AuctionService) ListAuctions() []domain.Auction {
	return s.house.Auctions()
}

// RemainingTime returns the time left on an open auction.
func (s *AuctionService) RemainingTime(tokenID uint64) (time.Duration, error) {
	return s.house.RemainingTime(tokenID)
}

// IsOpen reports whether the auction is still open.
func (s *AuctionService) IsOpen(tokenID uint64) (bool, error) {
	return s.house.IsOpen(tokenID)
}

// HighestBid returns the current bid.
func (s *AuctionService) HighestBid(tokenID uint64) (*big.Int, error) {
	return s.house.HighestBid(tokenID)
}

// HighestBidder returns the current bidder, nil when no bid was made.
func (s *AuctionService) HighestBidder(tokenID uint64) (*common.Address, error) {
	return s.house.HighestBidder(tokenID)
}

// PendingBalance returns the amount owed to the account.
func (s *AuctionService) PendingBalance(account common.Address) *big.Int {
	return s.house.PendingBalance(account)
}

// Tokens exposes read access to the token ledger.
func (s *AuctionService) Tokens() domain.TokenLedger { return s.tokens }

// ListEvents returns persisted events, newest first.
func (s *AuctionService) ListEvents(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	return s.events.List(ctx, opts)
}

// ListTokenEvents returns one token's persisted events, newest first.
func (s *AuctionService) ListTokenEvents(ctx context.Context, tokenID uint64, opts domain.ListOpts) ([]domain.Event, error) {
	return s.events.ListByToken(ctx, tokenID, opts)
}

// CheckConservation verifies that the bank's held funds equal the house's
// outstanding liability. The health endpoint reports a mismatch as
// unhealthy.
func (s *AuctionService) CheckConservation(ctx context.Context, bank domain.Bank) error {
	held, err := bank.Held(ctx)
	if err != nil {
		return fmt.Errorf("service: read held funds: %w", err)
	}
	outstanding := s.house.OutstandingLiability()
	if held.Cmp(outstanding) != 0 {
		return fmt.Errorf("service: held %s does not cover outstanding %s", held, outstanding)
	}
	return nil
}

// flush persists and publishes the events collected by the last operation.
// The core already committed, so persistence failures are logged, not
// returned; the stores are rebuilt from the core on the next write anyway.
// Callers hold s.mu.
func (s *AuctionService) flush(ctx context.Context) {
	touched := make(map[uint64]bool)

	for _, e := range s.buffer {
		if err := s.events.Append(ctx, e); err != nil {
			s.logger.ErrorContext(ctx, "append event",
				slog.String("event", string(e.Type)),
				slog.String("error", err.Error()),
			)
		}

		if e.TokenID != nil && !touched[*e.TokenID] {
			touched[*e.TokenID] = true
			if a, err := s.house.Auction(*e.TokenID); err == nil {
				if err := s.auctions.Upsert(ctx, a); err != nil {
					s.logger.ErrorContext(ctx, "upsert auction",
						slog.Uint64("token_id", *e.TokenID),
						slog.String("error", err.Error()),
					)
				}
			}
		}

		switch e.Type {
		case domain.EventPendingCredited, domain.EventWithdrawal:
			if e.Account != nil {
				bal := s.house.PendingBalance(*e.Account)
				if err := s.pending.Set(ctx, *e.Account, bal); err != nil {
					s.logger.ErrorContext(ctx, "set pending balance",
						slog.String("account", e.Account.Hex()),
						slog.String("error", err.Error()),
					)
				}
			}
		}

		s.publish(ctx, e)
		if s.notifier != nil {
			if err := s.notifier.NotifyEvent(ctx, e); err != nil {
				s.logger.WarnContext(ctx, "notify", slog.String("error", err.Error()))
			}
		}
	}
	s.buffer = s.buffer[:0]
}

// publish sends the event to the shared channel and the token's channel.
func (s *AuctionService) publish(ctx context.Context, e domain.Event) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		s.logger.ErrorContext(ctx, "marshal event", slog.String("error", err.Error()))
		return
	}
	channels := []string{EventChannel}
	if e.TokenID != nil {
		channels = append(channels, fmt.Sprintf("%s.%d", EventChannel, *e.TokenID))
	}
	for _, ch := range channels {
		if err := s.bus.Publish(ctx, ch, payload); err != nil {
			s.logger.WarnContext(ctx, "publish event",
				slog.String("channel", ch),
				slog.String("error", err.Error()),
			)
		}
	}
}
