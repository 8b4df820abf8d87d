package engine

import (
	"context"
	"sync"
)

// Gate is the pause primitive fetchers block on between chunks. An open gate
// holds a closed channel, so Wait returns immediately; closing the gate swaps
// in a live channel that parks every waiter until the gate reopens. No
// goroutine ever polls.
type Gate struct {
	mu sync.Mutex
	ch chan struct{}
}

func NewGate() *Gate {
	g := &Gate{ch: make(chan struct{})}
	close(g.ch)
	return g
}

// Close pauses the gate. Safe to call when already closed.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ch:
		g.ch = make(chan struct{})
	default:
	}
}

// Open releases all waiters. Safe to call when already open.
func (g *Gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ch:
	default:
		close(g.ch)
	}
}

func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ch:
		return false
	default:
		return true
	}
}

// Wait blocks while the gate is closed. It returns the context error if the
// caller is cancelled first.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
