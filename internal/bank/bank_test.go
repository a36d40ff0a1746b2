package bank

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var acct = common.HexToAddress("0x0000000000000000000000000000000000000077")

func TestEscrowAndPay(t *testing.T) {
	b := NewAccountBank()
	ctx := context.Background()

	b.Deposit(acct, big.NewInt(1000))
	require.Equal(t, big.NewInt(1000), b.Balance(acct))

	require.NoError(t, b.Escrow(ctx, acct, big.NewInt(600)))
	require.Equal(t, big.NewInt(400), b.Balance(acct))
	held, err := b.Held(ctx)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(600), held)

	require.NoError(t, b.Pay(ctx, acct, big.NewInt(600)))
	require.Equal(t, big.NewInt(1000), b.Balance(acct))
	held, err = b.Held(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, held.Sign())
}

func TestEscrowInsufficientBalance(t *testing.T) {
	b := NewAccountBank()
	ctx := context.Background()

	b.Deposit(acct, big.NewInt(100))
	require.Error(t, b.Escrow(ctx, acct, big.NewInt(101)))

	// A failed escrow moves nothing.
	require.Equal(t, big.NewInt(100), b.Balance(acct))
	held, err := b.Held(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, held.Sign())
}

func TestPayRequiresCustody(t *testing.T) {
	b := NewAccountBank()
	ctx := context.Background()

	require.Error(t, b.Pay(ctx, acct, big.NewInt(1)))
	require.Equal(t, 0, b.Balance(acct).Sign())
}

func TestInvalidAmounts(t *testing.T) {
	b := NewAccountBank()
	ctx := context.Background()

	require.Error(t, b.Escrow(ctx, acct, nil))
	require.Error(t, b.Escrow(ctx, acct, big.NewInt(-1)))
	require.Error(t, b.Pay(ctx, acct, nil))
	require.Error(t, b.Pay(ctx, acct, big.NewInt(-1)))
}

func TestBalanceReturnsCopy(t *testing.T) {
	b := NewAccountBank()
	b.Deposit(acct, big.NewInt(500))

	bal := b.Balance(acct)
	bal.SetInt64(0)
	require.Equal(t, big.NewInt(500), b.Balance(acct))
}
