package house

import (
	"sync/atomic"

	"github.com/openmint/auctionhouse/internal/domain"
)

// entryGuard is the mutual-exclusion flag wrapping every state-mutating
// operation. It is acquired at entry and released on every exit path. Its
// job is to reject a nested call triggered from within an outgoing payment
// before the triggering operation's state has settled; a plain mutex would
// deadlock on that path instead of failing it.
type entryGuard struct {
	held atomic.Bool
}

// enter acquires the guard and returns the matching release. It fails with
// ErrReentrantCall when the guard is already held.
func (g *entryGuard) enter() (func(), error) {
	if !g.held.CompareAndSwap(false, true) {
		return nil, domain.ErrReentrantCall
	}
	return func() { g.held.Store(false) }, nil
}
