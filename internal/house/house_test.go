package house

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/openmint/auctionhouse/internal/bank"
	"github.com/openmint/auctionhouse/internal/domain"
	"github.com/openmint/auctionhouse/internal/token"
)

var (
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	charlie = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// eventLog collects emitted events for assertions.
type eventLog struct {
	mu     sync.Mutex
	events []domain.Event
}

func (l *eventLog) Emit(e domain.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []domain.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.EventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

func (l *eventLog) last() domain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

type fixture struct {
	house  *House
	bank   *bank.AccountBank
	ledger *token.Ledger
	clock  *fakeClock
	events *eventLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		bank:   bank.NewAccountBank(),
		ledger: token.NewLedger(),
		clock:  newFakeClock(),
		events: &eventLog{},
	}
	h, err := New(Config{
		Owner:  owner,
		Tokens: f.ledger,
		Bank:   f.bank,
		Clock:  f.clock,
		Sink:   f.events,
	})
	require.NoError(t, err)
	f.house = h

	// Everyone arrives with 10 ether of spendable balance.
	for _, acct := range []common.Address{alice, bob, charlie} {
		f.bank.Deposit(acct, eth(t, "10"))
	}
	return f
}

// eth converts a decimal ether string to wei.
func eth(t *testing.T, s string) *big.Int {
	t.Helper()
	r, ok := new(big.Rat).SetString(s)
	require.True(t, ok, "bad ether amount %q", s)
	wei := new(big.Int).Mul(r.Num(), big.NewInt(1_000_000_000_000_000_000))
	return wei.Quo(wei, r.Denom())
}

func TestMintCreatesPrimedAuction(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.house.Mint(owner, 0, "ipfs://meta/0", 1800*time.Second))

	a, err := f.house.Auction(0)
	require.NoError(t, err)
	require.Equal(t, owner, a.Owner)
	require.Equal(t, eth(t, "0.5"), a.CurrentBid)
	require.Nil(t, a.CurrentBidder)
	require.Equal(t, 1800*time.Second, a.AuctionDuration)
	require.Equal(t, "ipfs://meta/0", a.MetadataURI)

	open, err := f.house.IsOpen(0)
	require.NoError(t, err)
	require.True(t, open)

	tokenOwner, err := f.ledger.OwnerOf(0)
	require.NoError(t, err)
	require.Equal(t, owner, tokenOwner)

	require.Equal(t, []domain.EventType{
		domain.EventMinted, domain.EventMetadataSet, domain.EventDurationSet,
	}, f.events.types())
}

func TestMintAuthorizationAndDuplicates(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.house.Mint(alice, 0, "", time.Hour), domain.ErrNotOwner)

	require.NoError(t, f.house.Mint(owner, 0, "", time.Hour))
	require.ErrorIs(t, f.house.Mint(owner, 0, "", time.Hour), domain.ErrTokenExists)
}

func TestPlaceBidValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.house.Mint(owner, 0, "", 1800*time.Second))

	require.ErrorIs(t, f.house.PlaceBid(ctx, 0, owner, eth(t, "1")), domain.ErrOwnerCannotBid)
	require.ErrorIs(t, f.house.PlaceBid(ctx, 99, alice, eth(t, "1")), domain.ErrUnknownToken)

	// Below the start price.
	require.ErrorIs(t, f.house.PlaceBid(ctx, 0, alice, eth(t, "0.4")), domain.ErrBidTooLow)

	// Exactly the start price is accepted.
	require.NoError(t, f.house.PlaceBid(ctx, 0, alice, eth(t, "0.5")))
	bid, err := f.house.HighestBid(0)
	require.NoError(t, err)
	require.Equal(t, eth(t, "0.5"), bid)

	// After close every bid is rejected.
	f.clock.Advance(1801 * time.Second)
	require.ErrorIs(t, f.house.PlaceBid(ctx, 0, bob, eth(t, "2")), domain.ErrAuctionFinished)
}

func TestOutbidCreditsPendingLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.house.Mint(owner, 0, "", 1800*time.Second))

	require.NoError(t, f.house.PlaceBid(ctx, 0, alice, eth(t, "0.6")))

	// Needs at least current bid + 0.01.
	require.ErrorIs(t, f.house.PlaceBid(ctx, 0, bob, eth(t, "0.605")), domain.ErrBidTooLow)

	require.NoError(t, f.house.PlaceBid(ctx, 0, bob, eth(t, "0.61")))

	bidder, err := f.house.HighestBidder(0)
	require.NoError(t, err)
	require.Equal(t, bob, *bidder)

	bid, err := f.house.HighestBid(0)
	require.NoError(t, err)
	require.Equal(t, eth(t, "0.61"), bid)

	require.Equal(t, eth(t, "0.6"), f.house.PendingBalance(alice))
	requireConserved(t, f)
}

func TestBidEscrowFailureHasNoEffect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.house.Mint(owner, 0, "", 1800*time.Second))
	require.NoError(t, f.house.PlaceBid(ctx, 0, alice, eth(t, "0.5")))

	// An unfunded account cannot escrow; the registry must be untouched.
	pauper := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	err := f.house.PlaceBid(ctx, 0, pauper, eth(t, "1"))
	require.ErrorIs(t, err, domain.ErrTransferFailed)

	bidder, err := f.house.HighestBidder(0)
	require.NoError(t, err)
	require.Equal(t, alice, *bidder)
	require.Equal(t, 0, f.house.PendingBalance(pauper).Sign())
	requireConserved(t, f)
}

func TestAntiSnipeExtension(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.house.Mint(owner, 0, "", 1800*time.Second))

	// 90s of the 1800s window remain: inside the 120s anti-snipe window.
	f.clock.Advance(1710 * time.Second)
	require.NoError(t, f.house.PlaceBid(ctx, 0, alice, eth(t, "0.5")))

	remaining, err := f.house.RemainingTime(0)
	require.NoError(t, err)
	require.Equal(t, 120*time.Second, remaining)

	// The time_updated notification carries the new remaining time.
	var updated *domain.Event
	for _, e := range f.events.events {
		if e.Type == domain.EventTimeUpdated {
			ev := e
			updated = &ev
		}
	}
	require.NotNil(t, updated)
	require.Equal(t, 120*time.Second, *updated.Remaining)

	// Every further late bid keeps the auction open.
	f.clock.Advance(110 * time.Second)
	require.NoError(t, f.house.PlaceBid(ctx, 0, bob, eth(t, "0.51")))
	remaining, err = f.house.RemainingTime(0)
	require.NoError(t, err)
	require.Equal(t, 120*time.Second, remaining)
}

func TestBidOutsideWindowDoesNotExtend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.house.Mint(owner, 0, "", 1800*time.Second))

	f.clock.Advance(600 * time.Second)
	require.NoError(t, f.house.PlaceBid(ctx, 0, alice, eth(t, "0.5")))

	remaining, err := f.house.RemainingTime(0)
	require.NoError(t, err)
	require.Equal(t, 1200*time.Second, remaining)

	for _, typ := range f.events.types() {
		require.NotEqual(t, domain.EventTimeUpdated, typ)
	}
}

func TestRemainingTimeFailsAfterDeadline(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.house.Mint(owner, 0, "", 1800*time.Second))

	f.clock.Advance(1800 * time.Second)

	// IsOpen reports false without error; RemainingTime fails. The
	// asymmetry is part of the contract.
	open, err := f.house.IsOpen(0)
	require.NoError(t, err)
	require.False(t, open)

	_, err = f.house.RemainingTime(0)
	require.ErrorIs(t, err, domain.ErrAuctionFinished)
}

func TestWithdrawPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.house.Mint(owner, 0, "", 1800*time.Second))
	require.NoError(t, f.house.PlaceBid(ctx, 0, alice, eth(t, "0.6")))
	require.NoError(t, f.house.PlaceBid(ctx, 0, bob, eth(t, "0.61")))

	before := f.bank.Balance(alice)
	paid, err := f.house.WithdrawPending(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, eth(t, "0.6"), paid)
	require.Equal(t, new(big.Int).Add(before, eth(t, "0.6")), f.bank.Balance(alice))
	require.Equal(t, 0, f.house.PendingBalance(alice).Sign())

	// The second withdrawal has nothing owed and moves no funds.
	held, err := f.bank.Held(ctx)
	require.NoError(t, err)
	_, err = f.house.WithdrawPending(ctx, alice)
	require.ErrorIs(t, err, domain.ErrBidTooLow)
	heldAfter, err := f.bank.Held(ctx)
	require.NoError(t, err)
	require.Equal(t, held, heldAfter)
	requireConserved(t, f)
}

func TestWithdrawRestoresBalanceOnPaymentFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fb := &failingBank{Bank: f.bank}
	h, err := New(Config{Owner: owner, Tokens: token.NewLedger(), Bank: fb, Clock: f.clock})
	require.NoError(t, err)

	require.NoError(t, h.Mint(owner, 0, "", 1800*time.Second))
	require.NoError(t, h.PlaceBid(ctx, 0, alice, eth(t, "0.6")))
	require.NoError(t, h.PlaceBid(ctx, 0, bob, eth(t, "0.61")))

	fb.failPay = true
	_, err = h.WithdrawPending(ctx, alice)
	require.ErrorIs(t, err, domain.ErrTransferFailed)

	// The balance was zeroed before the payment attempt and restored after
	// the failure.
	require.Equal(t, eth(t, "0.6"), h.PendingBalance(alice))

	fb.failPay = false
	paid, err := h.WithdrawPending(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, eth(t, "0.6"), paid)
}

func TestRenewAuction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.house.Mint(owner, 0, "", 1800*time.Second))
	require.NoError(t, f.house.Mint(owner, 1, "", 1800*time.Second))
	require.NoError(t, f.house.PlaceBid(ctx, 1, alice, eth(t, "0.6")))
	require.NoError(t, f.house.PlaceBid(ctx, 1, bob, eth(t, "0.61")))

	require.ErrorIs(t, f.house.RenewAuction(owner, 0), domain.ErrAuctionStillOpen)
	require.ErrorIs(t, f.house.RenewAuction(alice, 0), domain.ErrNotOwner)

	f.clock.Advance(1801 * time.Second)

	// Alice withdrew her outbid stake, but token 1 still saw a bid: it can
	// never be relisted through renewal.
	_, err := f.house.WithdrawPending(ctx, alice)
	require.NoError(t, err)
	require.ErrorIs(t, f.house.RenewAuction(owner, 1), domain.ErrBidReceived)

	// Token 0 expired with zero bids and reopens for the same duration.
	require.NoError(t, f.house.RenewAuction(owner, 0))
	open, err := f.house.IsOpen(0)
	require.NoError(t, err)
	require.True(t, open)
	remaining, err := f.house.RemainingTime(0)
	require.NoError(t, err)
	require.Equal(t, 1800*time.Second, remaining)
}

func TestAcceptBid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.house.Mint(owner, 0, "", 1800*time.Second))
	require.NoError(t, f.house.PlaceBid(ctx, 0, bob, eth(t, "0.61")))

	require.ErrorIs(t, f.house.AcceptBid(ctx, bob, 0), domain.ErrNotOwner)
	require.ErrorIs(t, f.house.AcceptBid(ctx, owner, 0), domain.ErrAuctionStillOpen)

	f.clock.Advance(1801 * time.Second)

	ownerBefore := f.bank.Balance(owner)
	require.NoError(t, f.house.AcceptBid(ctx, owner, 0))

	// The owner was paid the winning bid and the winner was authorized as
	// the transfer target.
	require.Equal(t, new(big.Int).Add(ownerBefore, eth(t, "0.61")), f.bank.Balance(owner))
	approved, err := f.ledger.GetApproved(0)
	require.NoError(t, err)
	require.Equal(t, bob, approved)

	// Settlement announces the acceptance and the payout leaving custody.
	types := f.events.types()
	require.Equal(t, domain.EventBidAccepted, types[len(types)-2])
	payout := f.events.last()
	require.Equal(t, domain.EventWithdrawCompleted, payout.Type)
	require.Equal(t, owner, *payout.Account)
	require.Equal(t, eth(t, "0.61"), payout.Amount)

	// Acceptance is final.
	require.ErrorIs(t, f.house.AcceptBid(ctx, owner, 0), domain.ErrAlreadySettled)
	requireConserved(t, f)
}

func TestAcceptBidRequiresABid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.house.Mint(owner, 0, "", 1800*time.Second))

	f.clock.Advance(1801 * time.Second)
	require.ErrorIs(t, f.house.AcceptBid(ctx, owner, 0), domain.ErrNoBidReceived)
}

func TestAcceptBidPaymentFailureAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fb := &failingBank{Bank: f.bank}
	ledger := token.NewLedger()
	h, err := New(Config{Owner: owner, Tokens: ledger, Bank: fb, Clock: f.clock})
	require.NoError(t, err)

	require.NoError(t, h.Mint(owner, 0, "", 1800*time.Second))
	require.NoError(t, h.PlaceBid(ctx, 0, bob, eth(t, "0.61")))
	f.clock.Advance(1801 * time.Second)

	fb.failPay = true
	require.ErrorIs(t, h.AcceptBid(ctx, owner, 0), domain.ErrTransferFailed)

	// Nothing was settled and no approval was granted.
	a, err := h.Auction(0)
	require.NoError(t, err)
	require.False(t, a.Settled)
	approved, err := ledger.GetApproved(0)
	require.NoError(t, err)
	require.Equal(t, common.Address{}, approved)

	fb.failPay = false
	require.NoError(t, h.AcceptBid(ctx, owner, 0))
}

func TestGuardRejectsReentrantCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rb := &reentrantBank{Bank: f.bank}
	h, err := New(Config{Owner: owner, Tokens: token.NewLedger(), Bank: rb, Clock: f.clock})
	require.NoError(t, err)
	rb.house = h

	require.NoError(t, h.Mint(owner, 0, "", 1800*time.Second))
	require.NoError(t, h.PlaceBid(ctx, 0, alice, eth(t, "0.6")))
	require.NoError(t, h.PlaceBid(ctx, 0, bob, eth(t, "0.61")))

	// The payment recipient calls back into WithdrawPending mid-payment;
	// the nested call must be rejected while the outer one completes.
	rb.reenter = true
	paid, err := h.WithdrawPending(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, eth(t, "0.6"), paid)
	require.ErrorIs(t, rb.nestedErr, domain.ErrReentrantCall)
}

func TestCurrentBidIsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.house.Mint(owner, 0, "", time.Hour))

	prev := new(big.Int)
	bids := []string{"0.5", "0.51", "0.52", "0.6", "1.2"}
	bidders := []common.Address{alice, bob, alice, charlie, bob}
	for i, s := range bids {
		require.NoError(t, f.house.PlaceBid(ctx, 0, bidders[i], eth(t, s)))
		bid, err := f.house.HighestBid(0)
		require.NoError(t, err)
		require.True(t, bid.Cmp(prev) >= 0)
		prev = bid
	}
	requireConserved(t, f)
}

// requireConserved asserts the money-conservation property: funds held by
// the bank equal the sum of unsettled current bids plus pending balances.
func requireConserved(t *testing.T, f *fixture) {
	t.Helper()
	held, err := f.bank.Held(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, held.Cmp(f.house.OutstandingLiability()),
		"held %s != outstanding %s", held, f.house.OutstandingLiability())
}

// failingBank wraps a bank and fails outgoing payments on demand.
type failingBank struct {
	domain.Bank
	failPay bool
}

func (b *failingBank) Pay(ctx context.Context, to common.Address, amount *big.Int) error {
	if b.failPay {
		return context.DeadlineExceeded
	}
	return b.Bank.Pay(ctx, to, amount)
}

// reentrantBank calls back into the house from inside an outgoing payment.
type reentrantBank struct {
	domain.Bank
	house     *House
	reenter   bool
	nestedErr error
}

func (b *reentrantBank) Pay(ctx context.Context, to common.Address, amount *big.Int) error {
	if b.reenter {
		b.reenter = false
		_, b.nestedErr = b.house.WithdrawPending(ctx, to)
	}
	return b.Bank.Pay(ctx, to, amount)
}
