package executor

import "time"

// SetNow replaces the clock used for receipt timestamps.
func (e *Executor) SetNow(now func() time.Time) {
	e.now = now
}
