// Package domain defines the auction house's core types, sentinel errors,
// domain events, and the store/cache interfaces implemented by the
// infrastructure packages.
package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Pricing and timing constants shared by every auction. Amounts are in wei.
var (
	// StartPrice is the minimum first bid: 0.5 ether.
	StartPrice = big.NewInt(500_000_000_000_000_000)

	// MinBidIncrement is the minimum raise over the current bid: 0.01 ether.
	MinBidIncrement = big.NewInt(10_000_000_000_000_000)
)

// AntiSnipeWindow is the trailing window before the deadline. A bid landing
// inside it extends the auction so that exactly this much time remains.
const AntiSnipeWindow = 2 * time.Minute

// Auction is the per-token auction record. CurrentBidder is nil if and only
// if no bid has ever been accepted; once a record is settled the bid fields
// are never mutated again, but the record is retained so transfer checks
// keep working. Owner mirrors the ledger's current owner so the ledger can
// be rebuilt from persisted records after a restart.
type Auction struct {
	TokenID         uint64          `json:"token_id"`
	Owner           common.Address  `json:"owner"`
	CurrentBid      *big.Int        `json:"current_bid"`
	CurrentBidder   *common.Address `json:"current_bidder,omitempty"`
	AuctionStart    time.Time       `json:"auction_start"`
	AuctionDuration time.Duration   `json:"auction_duration"`
	MetadataURI     string          `json:"metadata_uri"`
	Settled         bool            `json:"settled"`
}

// Deadline returns the instant the auction closes. It only ever moves
// forward over a record's lifetime (anti-snipe extension or renewal).
func (a Auction) Deadline() time.Time {
	return a.AuctionStart.Add(a.AuctionDuration)
}

// OpenAt reports whether the auction is still open at the given instant.
func (a Auction) OpenAt(now time.Time) bool {
	return now.Before(a.Deadline())
}

// Clone returns a deep copy so the registry's records are never aliased by
// callers.
func (a Auction) Clone() Auction {
	c := a
	if a.CurrentBid != nil {
		c.CurrentBid = new(big.Int).Set(a.CurrentBid)
	}
	if a.CurrentBidder != nil {
		addr := *a.CurrentBidder
		c.CurrentBidder = &addr
	}
	return c
}
