package lifecycle

import (
	"sync"
	"testing"
)

func TestGuardTokenValidUntilInvalidated(t *testing.T) {
	var g Guard

	tok := g.Token()
	if !g.Valid(tok) {
		t.Fatal("expected fresh token to be valid")
	}

	next := g.Invalidate()
	if g.Valid(tok) {
		t.Error("expected old token to be invalid after Invalidate")
	}
	if !g.Valid(next) {
		t.Error("expected token returned by Invalidate to be valid")
	}
	if g.Token() != next {
		t.Errorf("Token() = %d, want %d", g.Token(), next)
	}
}

func TestGuardConcurrentInvalidate(t *testing.T) {
	var g Guard
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Invalidate()
		}()
	}
	wg.Wait()

	if got := g.Token(); got != 50 {
		t.Errorf("Token() = %d, want 50", got)
	}
}
