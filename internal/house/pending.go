package house

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmint/auctionhouse/internal/domain"
)

// WithdrawPending pays out the caller's pending-returns balance. The ledger
// entry is zeroed before the outgoing payment is attempted; if the payment
// fails the balance is restored and the call fails with ErrTransferFailed.
// A zero balance fails with ErrBidTooLow, the shared "nothing owed" code.
func (h *House) WithdrawPending(ctx context.Context, caller common.Address) (*big.Int, error) {
	release, err := h.guard.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	h.mu.Lock()
	bal, ok := h.pending[caller]
	if !ok || bal.Sign() == 0 {
		h.mu.Unlock()
		return nil, domain.ErrBidTooLow
	}
	owed := new(big.Int).Set(bal)
	bal.SetInt64(0)
	h.mu.Unlock()

	if err := h.bank.Pay(ctx, caller, owed); err != nil {
		h.mu.Lock()
		h.pending[caller].Set(owed)
		h.mu.Unlock()
		return nil, fmt.Errorf("house: withdraw for %s: %w", caller.Hex(), domain.ErrTransferFailed)
	}

	h.emit(domain.NewEvent(domain.EventWithdrawal, h.clock.Now()).
		WithAccount(caller).
		WithAmount(owed))
	return owed, nil
}
