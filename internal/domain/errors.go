package domain

import "errors"

// Sentinel errors for the auction house. Callers match on these with
// errors.Is; layers add context by wrapping with fmt.Errorf and %w.
var (
	// Authorization.
	ErrNotOwner         = errors.New("caller is not the contract owner")
	ErrOwnerCannotBid   = errors.New("contract owner is not allowed to bid")
	ErrNotHighestBidder = errors.New("destination is not the highest bidder")
	ErrNotAuthorized    = errors.New("caller is neither owner nor approved")

	// Validation.
	ErrUnknownToken = errors.New("token id does not exist")
	ErrTokenExists  = errors.New("token id already exists")
	// ErrBidTooLow is also returned by WithdrawPending when nothing is owed;
	// the two conditions share one error code.
	ErrBidTooLow = errors.New("not enough funds")

	// Lifecycle.
	ErrAuctionFinished  = errors.New("auction already finished")
	ErrAuctionStillOpen = errors.New("auction still open")
	ErrNoBidReceived    = errors.New("no bid received for this token")
	ErrBidReceived      = errors.New("bid already received for this token")
	ErrAlreadySettled   = errors.New("auction already settled")
	ErrFunctionDisabled = errors.New("function disabled")

	// Payment and concurrency.
	ErrTransferFailed = errors.New("transfer failed")
	ErrReentrantCall  = errors.New("reentrant call")
	ErrLockHeld       = errors.New("lock already held")
)
