// Package memory implements the domain store interfaces in process memory.
// The standalone run mode and the service tests use it in place of
// PostgreSQL.
package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmint/auctionhouse/internal/domain"
)

// AuctionStore implements domain.AuctionStore in memory.
type AuctionStore struct {
	mu       sync.RWMutex
	auctions map[uint64]domain.Auction
}

// NewAuctionStore creates an empty AuctionStore.
func NewAuctionStore() *AuctionStore {
	return &AuctionStore{auctions: make(map[uint64]domain.Auction)}
}

// Upsert writes the full auction record.
func (s *AuctionStore) Upsert(_ context.Context, a domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[a.TokenID] = a.Clone()
	return nil
}

// GetByTokenID retrieves a single auction record.
func (s *AuctionStore) GetByTokenID(_ context.Context, tokenID uint64) (domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auctions[tokenID]
	if !ok {
		return domain.Auction{}, domain.ErrUnknownToken
	}
	return a.Clone(), nil
}

// List returns auction records ordered by token id.
func (s *AuctionStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page(s.collect(func(domain.Auction) bool { return true }), opts), nil
}

// ListSettled returns records that went through acceptance.
func (s *AuctionStore) ListSettled(_ context.Context, opts domain.ListOpts) ([]domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page(s.collect(func(a domain.Auction) bool { return a.Settled }), opts), nil
}

// Count returns the number of stored auction records.
func (s *AuctionStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.auctions)), nil
}

// collect and page run under s.mu.
func (s *AuctionStore) collect(keep func(domain.Auction) bool) []domain.Auction {
	out := make([]domain.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		if keep(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out
}

func (s *AuctionStore) page(list []domain.Auction, opts domain.ListOpts) []domain.Auction {
	if opts.Offset > 0 {
		if opts.Offset >= len(list) {
			return nil
		}
		list = list[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(list) {
		list = list[:opts.Limit]
	}
	return list
}

// PendingStore implements domain.PendingStore in memory.
type PendingStore struct {
	mu       sync.RWMutex
	balances map[common.Address]*big.Int
}

// NewPendingStore creates an empty PendingStore.
func NewPendingStore() *PendingStore {
	return &PendingStore{balances: make(map[common.Address]*big.Int)}
}

// Set writes the account's full balance.
func (s *PendingStore) Set(_ context.Context, account common.Address, balance *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[account] = new(big.Int).Set(balance)
	return nil
}

// Get returns the account's balance, zero when the account is unknown.
func (s *PendingStore) Get(_ context.Context, account common.Address) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if bal, ok := s.balances[account]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

// All returns the whole ledger.
func (s *PendingStore) All(context.Context) (map[common.Address]*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[common.Address]*big.Int, len(s.balances))
	for acct, bal := range s.balances {
		out[acct] = new(big.Int).Set(bal)
	}
	return out, nil
}

// EventStore implements domain.EventStore in memory.
type EventStore struct {
	mu     sync.RWMutex
	events []domain.Event
}

// NewEventStore creates an empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{}
}

// Append adds one event to the log.
func (s *EventStore) Append(_ context.Context, e domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// List returns events newest first.
func (s *EventStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(domain.Event) bool { return true }, opts), nil
}

// ListByToken returns a token's events newest first.
func (s *EventStore) ListByToken(_ context.Context, tokenID uint64, opts domain.ListOpts) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(e domain.Event) bool {
		return e.TokenID != nil && *e.TokenID == tokenID
	}, opts), nil
}

// filter runs under s.mu.
func (s *EventStore) filter(keep func(domain.Event) bool, opts domain.ListOpts) []domain.Event {
	var out []domain.Event
	// Stored oldest first; walk backwards for newest-first order.
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if !keep(e) {
			continue
		}
		if opts.Since != nil && e.At.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.At.After(*opts.Until) {
			continue
		}
		out = append(out, e)
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out
}

// Compile-time interface checks.
var (
	_ domain.AuctionStore = (*AuctionStore)(nil)
	_ domain.PendingStore = (*PendingStore)(nil)
	_ domain.EventStore   = (*EventStore)(nil)
)
