package domain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Bank is the payment collaborator. Escrow models the execution environment
// moving an incoming bid into the house's custody atomically with the call;
// Pay moves custodied funds out and is the only step of any operation that
// may fail after internal accounting has been updated.
type Bank interface {
	// Escrow moves amount from the given account into house custody.
	Escrow(ctx context.Context, from common.Address, amount *big.Int) error

	// Pay moves amount out of house custody to the given account.
	Pay(ctx context.Context, to common.Address, amount *big.Int) error

	// Held returns the total amount currently in house custody.
	Held(ctx context.Context) (*big.Int, error)
}
