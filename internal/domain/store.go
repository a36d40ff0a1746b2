package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AuctionStore persists auction records keyed by token id. Records are
// upserted in place and never deleted.
type AuctionStore interface {
	Upsert(ctx context.Context, a Auction) error
	GetByTokenID(ctx context.Context, tokenID uint64) (Auction, error)
	List(ctx context.Context, opts ListOpts) ([]Auction, error)
	ListSettled(ctx context.Context, opts ListOpts) ([]Auction, error)
	Count(ctx context.Context) (int64, error)
}

// PendingStore persists the pull-payment ledger keyed by account. The stored
// value is the full balance after each change; entries are never deleted,
// they go to zero.
type PendingStore interface {
	Set(ctx context.Context, account common.Address, balance *big.Int) error
	Get(ctx context.Context, account common.Address) (*big.Int, error)
	All(ctx context.Context) (map[common.Address]*big.Int, error)
}

// EventStore persists the append-only log of domain notifications.
type EventStore interface {
	Append(ctx context.Context, e Event) error
	List(ctx context.Context, opts ListOpts) ([]Event, error)
	ListByToken(ctx context.Context, tokenID uint64, opts ListOpts) ([]Event, error)
}
