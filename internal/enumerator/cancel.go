package enumerator

import "sync/atomic"

// CancelFlag is a shared cancellation signal for one execution context.
//
// Every enumerator created for the execution polls the same flag at the start
// of each Next. Setting it is permanent; there is no way to clear it.
//
// A nil *CancelFlag is never cancelled.
type CancelFlag struct {
	set atomic.Bool
}

// NewCancelFlag returns an unset flag.
func NewCancelFlag() *CancelFlag {
	return &CancelFlag{}
}

// Cancel sets the flag. Safe for concurrent use.
func (c *CancelFlag) Cancel() {
	c.set.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (c *CancelFlag) Cancelled() bool {
	return c != nil && c.set.Load()
}
