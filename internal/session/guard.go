package session

import "sync/atomic"

// Guard issues monotonically increasing turn tokens and answers staleness
// checks. It is the single invalidation mechanism for the whole turn
// pipeline: every asynchronous continuation captures a token and calls
// IsCurrent before producing an externally visible effect. There are no
// per-subsystem cancellation flags on top of this.
type Guard struct {
	current atomic.Int64
}

func NewGuard() *Guard {
	return &Guard{}
}

// NewSession invalidates all outstanding work and returns the new token.
func (g *Guard) NewSession() int64 {
	return g.current.Add(1)
}

// IsCurrent reports whether a previously captured token is still the latest.
func (g *Guard) IsCurrent(token int64) bool {
	return g.current.Load() == token
}
