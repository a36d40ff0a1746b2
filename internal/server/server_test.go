package server

import (
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/openmint/auctionhouse/internal/bank"
	"github.com/openmint/auctionhouse/internal/server/handler"
	"github.com/openmint/auctionhouse/internal/service"
	"github.com/openmint/auctionhouse/internal/store/memory"
	"github.com/openmint/auctionhouse/internal/token"
)

const apiKey = "test-key"

var (
	owner = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

type fixture struct {
	srv   *Server
	clock *fakeClock
	bank  *bank.AccountBank
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	b := bank.NewAccountBank()
	b.Deposit(alice, eth("10"))
	b.Deposit(bob, eth("10"))

	svc, err := service.New(service.Config{
		Owner:    owner,
		Tokens:   token.NewLedger(),
		Bank:     b,
		Clock:    clock,
		Auctions: memory.NewAuctionStore(),
		Pending:  memory.NewPendingStore(),
		Events:   memory.NewEventStore(),
		Logger:   logger,
	})
	require.NoError(t, err)

	srv := NewServer(Config{Port: 0, APIKey: apiKey}, Handlers{
		Health:   handler.NewHealthHandler(svc, b, logger),
		Auctions: handler.NewAuctionHandler(svc, 30*time.Minute, logger),
		Bids:     handler.NewBidHandler(svc, logger),
		Pending:  handler.NewPendingHandler(svc, logger),
		Tokens:   handler.NewTokenHandler(svc, logger),
	}, nil, logger)

	return &fixture{srv: srv, clock: clock, bank: b}
}

func eth(s string) *big.Int {
	r, _ := new(big.Rat).SetString(s)
	wei := new(big.Int).Mul(r.Num(), big.NewInt(1_000_000_000_000_000_000))
	return wei.Quo(wei, r.Denom())
}

func (f *fixture) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	f.srv.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) mint(t *testing.T, tokenID uint64) {
	t.Helper()
	rec := f.do(http.MethodPost, "/api/auctions",
		`{"token_id":`+strconv.FormatUint(tokenID, 10)+`,"metadata_uri":"ipfs://x","duration_seconds":1800}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestMintRequiresAPIKey(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/auctions", `{"token_id":0,"duration_seconds":1800}`, false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/api/auctions", `{"token_id":0,"duration_seconds":1800}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"current_bid":"500000000000000000"`)

	// Duplicate mint conflicts.
	rec = f.do(http.MethodPost, "/api/auctions", `{"token_id":0,"duration_seconds":1800}`, true)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetAuction(t *testing.T) {
	f := newFixture(t)
	f.mint(t, 0)

	rec := f.do(http.MethodGet, "/api/auctions/0", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"token_id":0`)

	rec = f.do(http.MethodGet, "/api/auctions/99", "", false)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/api/auctions/abc", "", false)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBidFlow(t *testing.T) {
	f := newFixture(t)
	f.mint(t, 0)

	// Too low.
	rec := f.do(http.MethodPost, "/api/auctions/0/bids",
		`{"bidder":"`+alice.Hex()+`","amount_wei":"400000000000000000"}`, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Accepted.
	rec = f.do(http.MethodPost, "/api/auctions/0/bids",
		`{"bidder":"`+alice.Hex()+`","amount_wei":"600000000000000000"}`, false)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), alice.Hex())

	// Outbid credits the pending ledger.
	rec = f.do(http.MethodPost, "/api/auctions/0/bids",
		`{"bidder":"`+bob.Hex()+`","amount_wei":"610000000000000000"}`, false)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodGet, "/api/accounts/"+alice.Hex()+"/pending", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"balance_wei":"600000000000000000"`)
}

func TestBidAfterCloseIsGone(t *testing.T) {
	f := newFixture(t)
	f.mint(t, 0)
	f.clock.Advance(1801 * time.Second)

	rec := f.do(http.MethodPost, "/api/auctions/0/bids",
		`{"bidder":"`+alice.Hex()+`","amount_wei":"600000000000000000"}`, false)
	require.Equal(t, http.StatusGone, rec.Code)
}

func TestRemainingEndpoint(t *testing.T) {
	f := newFixture(t)
	f.mint(t, 0)

	rec := f.do(http.MethodGet, "/api/auctions/0/remaining", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"remaining_seconds":1800`)

	f.clock.Advance(1800 * time.Second)
	rec = f.do(http.MethodGet, "/api/auctions/0/remaining", "", false)
	require.Equal(t, http.StatusGone, rec.Code)
}

func TestSettlementFlow(t *testing.T) {
	f := newFixture(t)
	f.mint(t, 0)

	rec := f.do(http.MethodPost, "/api/auctions/0/bids",
		`{"bidder":"`+bob.Hex()+`","amount_wei":"610000000000000000"}`, false)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Still open.
	rec = f.do(http.MethodPost, "/api/auctions/0/accept", "", true)
	require.Equal(t, http.StatusConflict, rec.Code)

	f.clock.Advance(1801 * time.Second)
	rec = f.do(http.MethodPost, "/api/auctions/0/accept", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"settled":true`)

	// The winner claims through the guarded transfer; the response reports
	// the ledger's owner after the move.
	rec = f.do(http.MethodPost, "/api/tokens/0/transfer",
		`{"caller":"`+bob.Hex()+`","from":"`+owner.Hex()+`","to":"`+bob.Hex()+`","safe":true}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"owner":"`+bob.Hex()+`"`)

	rec = f.do(http.MethodGet, "/api/tokens/0", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), bob.Hex())
}

func TestTransferToNonWinnerForbidden(t *testing.T) {
	f := newFixture(t)
	f.mint(t, 0)

	rec := f.do(http.MethodPost, "/api/auctions/0/bids",
		`{"bidder":"`+bob.Hex()+`","amount_wei":"610000000000000000"}`, false)
	require.Equal(t, http.StatusCreated, rec.Code)
	f.clock.Advance(1801 * time.Second)

	rec = f.do(http.MethodPost, "/api/tokens/0/transfer",
		`{"caller":"`+owner.Hex()+`","from":"`+owner.Hex()+`","to":"`+alice.Hex()+`"}`, false)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOperatorsAlwaysDisabled(t *testing.T) {
	f := newFixture(t)
	f.mint(t, 0)

	rec := f.do(http.MethodPost, "/api/tokens/0/operators",
		`{"caller":"`+owner.Hex()+`","operator":"`+bob.Hex()+`","approved":true}`, false)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWithdrawNothingOwed(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/withdrawals", `{"account":"`+alice.Hex()+`"}`, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthReportsConservation(t *testing.T) {
	f := newFixture(t)
	f.mint(t, 0)

	rec := f.do(http.MethodGet, "/api/health", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestEventFeeds(t *testing.T) {
	f := newFixture(t)
	f.mint(t, 0)

	rec := f.do(http.MethodPost, "/api/auctions/0/bids",
		`{"bidder":"`+alice.Hex()+`","amount_wei":"500000000000000000"}`, false)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodGet, "/api/events", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "bid_placed")

	rec = f.do(http.MethodGet, "/api/auctions/0/events", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "minted")
}

func TestRenewEndpoint(t *testing.T) {
	f := newFixture(t)
	f.mint(t, 0)

	rec := f.do(http.MethodPost, "/api/auctions/0/renew", "", true)
	require.Equal(t, http.StatusConflict, rec.Code)

	f.clock.Advance(1801 * time.Second)
	rec = f.do(http.MethodPost, "/api/auctions/0/renew", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/auctions/0/remaining", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"remaining_seconds":1800`)
}
