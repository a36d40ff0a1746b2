package house

import "time"

// Clock supplies the current time. The house recomputes "open" from the
// clock on every entry; there are no timers and no close event in the
// lifecycle, a closed auction simply sits idle until a call touches it.
type Clock interface {
	Now() time.Time
}

// systemClock reads the wall clock in UTC.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }
