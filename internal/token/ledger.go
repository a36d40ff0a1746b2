// Package token implements the in-process token-ownership ledger: existence,
// owner and balance bookkeeping, approvals, and the raw transfer primitives.
// The auction core wraps this ledger's transfer entry points; it never
// reimplements its bookkeeping.
package token

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmint/auctionhouse/internal/domain"
)

// Ledger is a mutex-guarded ownership registry implementing
// domain.TokenLedger.
type Ledger struct {
	mu        sync.RWMutex
	owners    map[uint64]common.Address
	uris      map[uint64]string
	balances  map[common.Address]int
	approved  map[uint64]common.Address
	operators map[common.Address]map[common.Address]bool
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		owners:    make(map[uint64]common.Address),
		uris:      make(map[uint64]string),
		balances:  make(map[common.Address]int),
		approved:  make(map[uint64]common.Address),
		operators: make(map[common.Address]map[common.Address]bool),
	}
}

// Exists reports whether the token has been minted.
func (l *Ledger) Exists(tokenID uint64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.owners[tokenID]
	return ok
}

// OwnerOf returns the token's current owner.
func (l *Ledger) OwnerOf(tokenID uint64) (common.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	owner, ok := l.owners[tokenID]
	if !ok {
		return common.Address{}, domain.ErrUnknownToken
	}
	return owner, nil
}

// BalanceOf returns the number of tokens the account owns.
func (l *Ledger) BalanceOf(owner common.Address) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[owner]
}

// TotalSupply returns the number of minted tokens.
func (l *Ledger) TotalSupply() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.owners)
}

// TokenURI returns the token's metadata reference.
func (l *Ledger) TokenURI(tokenID uint64) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.owners[tokenID]; !ok {
		return "", domain.ErrUnknownToken
	}
	return l.uris[tokenID], nil
}

// GetApproved returns the single-token approved target, or the zero address
// when none is set.
func (l *Ledger) GetApproved(tokenID uint64) (common.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.owners[tokenID]; !ok {
		return common.Address{}, domain.ErrUnknownToken
	}
	return l.approved[tokenID], nil
}

// IsApprovedForAll reports whether operator may act on all of owner's
// tokens.
func (l *Ledger) IsApprovedForAll(owner, operator common.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.operators[owner][operator]
}

// Mint creates a token owned by to. Minting an existing id fails.
func (l *Ledger) Mint(to common.Address, tokenID uint64, uri string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.owners[tokenID]; ok {
		return domain.ErrTokenExists
	}
	l.owners[tokenID] = to
	l.uris[tokenID] = uri
	l.balances[to]++
	return nil
}

// TransferFrom moves the token from its owner to the destination. The
// caller must be the owner, the approved target, or an approved operator.
func (l *Ledger) TransferFrom(caller, from, to common.Address, tokenID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	owner, ok := l.owners[tokenID]
	if !ok {
		return domain.ErrUnknownToken
	}
	if owner != from {
		return domain.ErrNotAuthorized
	}
	if !l.canAct(caller, owner, tokenID) {
		return domain.ErrNotAuthorized
	}

	l.owners[tokenID] = to
	l.balances[from]--
	l.balances[to]++
	// A transfer clears the single-token approval.
	delete(l.approved, tokenID)
	return nil
}

// SafeTransferFrom is the checked transfer variant. In-process there is no
// receiver contract to call back, so it shares TransferFrom's semantics;
// data is accepted for interface parity.
func (l *Ledger) SafeTransferFrom(caller, from, to common.Address, tokenID uint64, _ []byte) error {
	return l.TransferFrom(caller, from, to, tokenID)
}

// Approve sets the token's single approved transfer target. Only the owner
// or an approved operator may call it.
func (l *Ledger) Approve(caller, to common.Address, tokenID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	owner, ok := l.owners[tokenID]
	if !ok {
		return domain.ErrUnknownToken
	}
	if caller != owner && !l.operators[owner][caller] {
		return domain.ErrNotAuthorized
	}
	l.approved[tokenID] = to
	return nil
}

// SetApprovalForAll grants or revokes an operator over all of the caller's
// tokens. The auction house's guard never exposes this primitive; it exists
// for ledger completeness.
func (l *Ledger) SetApprovalForAll(caller, operator common.Address, approved bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if approved {
		if l.operators[caller] == nil {
			l.operators[caller] = make(map[common.Address]bool)
		}
		l.operators[caller][operator] = true
		return nil
	}
	delete(l.operators[caller], operator)
	return nil
}

// canAct reports whether caller may move the token. Callers hold l.mu.
func (l *Ledger) canAct(caller, owner common.Address, tokenID uint64) bool {
	if caller == owner {
		return true
	}
	if l.approved[tokenID] == caller {
		return true
	}
	return l.operators[owner][caller]
}

// Compile-time interface check.
var _ domain.TokenLedger = (*Ledger)(nil)
