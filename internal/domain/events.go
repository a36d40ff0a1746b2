package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventType identifies a domain notification emitted by the auction house.
type EventType string

const (
	EventMinted          EventType = "minted"
	EventMetadataSet     EventType = "metadata_set"
	EventDurationSet     EventType = "duration_set"
	EventTimeUpdated     EventType = "time_updated"
	EventBidPlaced       EventType = "bid_placed"
	EventPendingCredited EventType = "pending_credited"
	EventBidAccepted     EventType = "bid_accepted"
	EventWithdrawal      EventType = "withdrawal"

	// EventWithdrawCompleted reports the settlement payout leaving custody
	// for the owner; EventWithdrawal covers pull-payment withdrawals.
	EventWithdrawCompleted EventType = "withdraw_completed"

	// EventTransferred reports a guarded ownership transfer.
	EventTransferred EventType = "transferred"
)

// Event is a domain notification for external observers. Events are emitted
// for observation only; nothing in the core consumes them.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	TokenID   *uint64         `json:"token_id,omitempty"`
	Account   *common.Address `json:"account,omitempty"`
	Amount    *big.Int        `json:"amount,omitempty"`
	Remaining *time.Duration  `json:"remaining,omitempty"`
	At        time.Time       `json:"at"`
}

// NewEvent creates an event with a fresh ID and the given timestamp.
func NewEvent(typ EventType, at time.Time) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: typ,
		At:   at,
	}
}

// WithToken attaches a token id.
func (e Event) WithToken(tokenID uint64) Event {
	e.TokenID = &tokenID
	return e
}

// WithAccount attaches an account address.
func (e Event) WithAccount(addr common.Address) Event {
	e.Account = &addr
	return e
}

// WithAmount attaches a wei amount, copied so the event never aliases
// registry state.
func (e Event) WithAmount(amount *big.Int) Event {
	if amount != nil {
		e.Amount = new(big.Int).Set(amount)
	}
	return e
}

// WithRemaining attaches the remaining auction time.
func (e Event) WithRemaining(d time.Duration) Event {
	e.Remaining = &d
	return e
}

// EventSink receives domain events synchronously as operations emit them.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a plain function to the EventSink interface.
type EventSinkFunc func(Event)

// Emit calls f(e).
func (f EventSinkFunc) Emit(e Event) { f(e) }
