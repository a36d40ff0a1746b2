package notify

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/openmint/auctionhouse/internal/domain"
)

type fakeSender struct {
	name   string
	titles []string
	err    error
}

func (s *fakeSender) Send(_ context.Context, title, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.titles = append(s.titles, title)
	return nil
}

func (s *fakeSender) Name() string { return s.name }

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNotifyEventFilter(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{string(domain.EventBidAccepted)}, discard())
	ctx := context.Background()

	bid := domain.NewEvent(domain.EventBidPlaced, time.Now())
	require.NoError(t, n.NotifyEvent(ctx, bid))
	require.Empty(t, s.titles)

	accepted := domain.NewEvent(domain.EventBidAccepted, time.Now())
	require.NoError(t, n.NotifyEvent(ctx, accepted))
	require.Equal(t, []string{"Auction settled"}, s.titles)
}

func TestNotifyEmptyFilterAllowsAll(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, discard())

	require.NoError(t, n.NotifyEvent(context.Background(),
		domain.NewEvent(domain.EventWithdrawal, time.Now())))
	require.Len(t, s.titles, 1)
}

func TestDispatchContinuesPastFailingSender(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("boom")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.NotifyAll(context.Background(), "t", "m")
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad")
	require.Len(t, good.titles, 1)
}

func TestEventText(t *testing.T) {
	acct := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	e := domain.NewEvent(domain.EventBidPlaced, time.Now()).
		WithToken(7).
		WithAccount(acct).
		WithAmount(big.NewInt(610_000_000_000_000_000))

	title, message := EventText(e)
	require.Equal(t, "New highest bid", title)
	require.Contains(t, message, "token 7")
	require.Contains(t, message, acct.Hex())
	require.Contains(t, message, "0.61 ETH")
}
