package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/camilladsp-go/camilladsp/internal/control"
)

// TestSupervisor_RunLeavesNoGoroutineAfterCancel asserts Run's single
// event-loop goroutine exits cleanly on context cancellation, with no
// leftover goroutine blocked on Status.C() or Commands (spec.md §8's
// lifecycle invariants).
func TestSupervisor_RunLeavesNoGoroutineAfterCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _ := newTestSupervisor(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	s.cfg.Status.Send(control.Event{Kind: control.EventStarted})
	require.Eventually(t, func() bool { return s.State() == StateRunning }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

// TestSupervisor_RunLeavesNoGoroutineAcrossReload asserts a hot-swap
// reload (Reload command accepted, ClassifyReload reports ReloadHotSwap)
// leaves the event loop as the only goroutine once the run is cancelled —
// the reload path itself must not leak a goroutine per cycle.
func TestSupervisor_RunLeavesNoGoroutineAcrossReload(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, cmds := newTestSupervisor(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	doc := []byte(`
devices:
  samplerate: 48000
  chunksize: 1024
  capture: {type: Null, channels: 2}
  playback: {type: Null, channels: 2}
`)
	reply := make(chan control.Reply, 1)
	cmds <- control.Command{Kind: control.Reload, ConfigYAML: doc, Reply: reply}
	r := <-reply
	require.NoError(t, r.Err)
	require.Equal(t, ReloadHotSwap, s.LastReloadKind())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
