package domain

import "github.com/ethereum/go-ethereum/common"

// TokenLedger is the token-ownership collaborator. It owns existence checks,
// owner and balance bookkeeping, approvals, and the raw transfer primitives;
// the auction core never duplicates this bookkeeping, it only wraps the
// transfer-capable entry points behind its guard.
type TokenLedger interface {
	Exists(tokenID uint64) bool
	OwnerOf(tokenID uint64) (common.Address, error)
	BalanceOf(owner common.Address) int
	TotalSupply() int
	TokenURI(tokenID uint64) (string, error)
	GetApproved(tokenID uint64) (common.Address, error)
	IsApprovedForAll(owner, operator common.Address) bool

	Mint(to common.Address, tokenID uint64, uri string) error
	TransferFrom(caller, from, to common.Address, tokenID uint64) error
	SafeTransferFrom(caller, from, to common.Address, tokenID uint64, data []byte) error
	Approve(caller, to common.Address, tokenID uint64) error
	SetApprovalForAll(caller, operator common.Address, approved bool) error
}
