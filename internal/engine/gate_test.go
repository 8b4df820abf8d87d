package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateStartsOpen(t *testing.T) {
	g := NewGate()
	assert.False(t, g.Paused())
	require.NoError(t, g.Wait(context.Background()))
}

func TestGateBlocksWhenClosed(t *testing.T) {
	g := NewGate()
	g.Close()
	assert.True(t, g.Paused())

	released := make(chan error, 1)
	go func() { released <- g.Wait(context.Background()) }()

	select {
	case <-released:
		t.Fatal("wait returned while gate was closed")
	case <-time.After(50 * time.Millisecond):
	}

	g.Open()
	select {
	case err := <-released:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait did not return after gate opened")
	}
	assert.False(t, g.Paused())
}

func TestGateWaitHonorsContext(t *testing.T) {
	g := NewGate()
	g.Close()

	ctx, cancel := context.WithCancel(context.Background())
	released := make(chan error, 1)
	go func() { released <- g.Wait(ctx) }()
	cancel()

	select {
	case err := <-released:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("wait did not return after context cancel")
	}
}

func TestGateRepeatedTransitions(t *testing.T) {
	g := NewGate()
	g.Close()
	g.Close()
	assert.True(t, g.Paused())
	g.Open()
	g.Open()
	assert.False(t, g.Paused())
	g.Close()
	assert.True(t, g.Paused())
	g.Open()
	require.NoError(t, g.Wait(context.Background()))
}
