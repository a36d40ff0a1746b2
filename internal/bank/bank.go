// Package bank implements the payment collaborator: per-account balances
// and the house's custody pot. Escrow is the atomic incoming leg of a bid;
// Pay is the outgoing leg used by withdrawals and settlement payouts.
package bank

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmint/auctionhouse/internal/domain"
)

// AccountBank is an in-memory bank. Balances are wei and never negative.
type AccountBank struct {
	mu       sync.Mutex
	accounts map[common.Address]*big.Int
	held     *big.Int
}

// NewAccountBank creates an empty bank.
func NewAccountBank() *AccountBank {
	return &AccountBank{
		accounts: make(map[common.Address]*big.Int),
		held:     new(big.Int),
	}
}

// Deposit credits an account's spendable balance. Used to seed accounts.
func (b *AccountBank) Deposit(account common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balance(account).Add(b.balance(account), amount)
}

// Balance returns a copy of the account's spendable balance.
func (b *AccountBank) Balance(account common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.balance(account))
}

// Escrow moves amount from the account into house custody. It fails when
// the account's balance is insufficient, leaving all balances unchanged.
func (b *AccountBank) Escrow(_ context.Context, from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("bank: invalid escrow amount")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	bal := b.balance(from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("bank: insufficient balance for %s", from.Hex())
	}
	bal.Sub(bal, amount)
	b.held.Add(b.held, amount)
	return nil
}

// Pay moves amount out of house custody to the account. It fails when the
// custody pot does not cover the amount.
func (b *AccountBank) Pay(_ context.Context, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("bank: invalid payout amount")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.held.Cmp(amount) < 0 {
		return fmt.Errorf("bank: custody underfunded paying %s", to.Hex())
	}
	b.held.Sub(b.held, amount)
	b.balance(to).Add(b.balance(to), amount)
	return nil
}

// Held returns a copy of the total amount in house custody.
func (b *AccountBank) Held(_ context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.held), nil
}

// balance returns the live balance entry for an account. Callers hold b.mu.
func (b *AccountBank) balance(account common.Address) *big.Int {
	bal, ok := b.accounts[account]
	if !ok {
		bal = new(big.Int)
		b.accounts[account] = bal
	}
	return bal
}

// Compile-time interface check.
var _ domain.Bank = (*AccountBank)(nil)
