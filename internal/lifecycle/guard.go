// Package lifecycle provides a generation guard used to drop results that
// arrive after their owner was reset, switched to another user, or closed.
package lifecycle

import "sync/atomic"

// Token identifies the generation that was current when an operation began.
type Token int64

// Guard hands out tokens and invalidates them in bulk. The zero value is
// ready to use and safe for concurrent use.
type Guard struct {
	gen atomic.Int64
}

// Token returns the current generation.
func (g *Guard) Token() Token {
	return Token(g.gen.Load())
}

// Valid reports whether t is still the current generation.
func (g *Guard) Valid(t Token) bool {
	return g.gen.Load() == int64(t)
}

// Invalidate retires every outstanding token and returns the new one.
func (g *Guard) Invalidate() Token {
	return Token(g.gen.Add(1))
}
