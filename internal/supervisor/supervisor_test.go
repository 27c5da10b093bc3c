package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camilladsp-go/camilladsp/internal/audio"
	"github.com/camilladsp-go/camilladsp/internal/config"
	"github.com/camilladsp-go/camilladsp/internal/control"
	"github.com/camilladsp-go/camilladsp/internal/dsp"
	"github.com/camilladsp-go/camilladsp/internal/engine"
)

func testConfiguration(t *testing.T) *config.Configuration {
	t.Helper()
	raw, err := config.Load([]byte(`
devices:
  samplerate: 48000
  chunksize: 1024
  capture: {type: Null, channels: 2}
  playback: {type: Null, channels: 2}
`))
	require.NoError(t, err)
	cfg, err := config.Validate(raw)
	require.NoError(t, err)
	return cfg
}

func newTestSupervisor(t *testing.T) (*Supervisor, chan control.Command) {
	t.Helper()
	cmds := make(chan control.Command, 4)
	status := control.NewStatusChannel(8)
	in, out := audio.NewQueue(2), audio.NewQueue(2)
	proc := engine.NewProcessing(engine.ProcessingConfig{In: in, Out: out, Status: status})

	s := New(Config{
		Commands:      cmds,
		Status:        status,
		Processing:    proc,
		Faders:        dsp.NewFaderBank(),
		Configuration: testConfiguration(t),
	})
	return s, cmds
}

func TestStateMachine_StartingToRunningOnStartedEvent(t *testing.T) {
	t.Parallel()

	s, _ := newTestSupervisor(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.cfg.Status.Send(control.Event{Kind: control.EventStarted})
	assert.Eventually(t, func() bool { return s.State() == StateRunning }, time.Second, time.Millisecond)
}

func TestStateMachine_StopEventTransitionsToStopped(t *testing.T) {
	t.Parallel()

	s, _ := newTestSupervisor(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.cfg.Status.Send(control.Event{Kind: control.EventStarted})
	assert.Eventually(t, func() bool { return s.State() == StateRunning }, time.Second, time.Millisecond)

	s.cfg.Status.Send(control.Event{Kind: control.EventStopped, Reason: control.StopCaptureError})
	assert.Eventually(t, func() bool { return s.State() == StateStopped }, time.Second, time.Millisecond)
}

func TestSupervisor_SetVolumeAndGetVolumeRoundTrip(t *testing.T) {
	t.Parallel()

	s, cmds := newTestSupervisor(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	reply := make(chan control.Reply, 1)
	cmds <- control.Command{Kind: control.SetVolume, GainDB: -6, Reply: reply}
	<-reply

	reply2 := make(chan control.Reply, 1)
	cmds <- control.Command{Kind: control.GetVolume, Reply: reply2}
	got := <-reply2
	assert.InDelta(t, -6, got.VolumeDB, 0.01)
}

func TestSupervisor_ClassifyReload_HotSwapWhenDeviceUnchanged(t *testing.T) {
	t.Parallel()

	cfg := testConfiguration(t)
	assert.Equal(t, ReloadHotSwap, ClassifyReload(cfg, cfg))
}

func TestSupervisor_ClassifyReload_RestartWhenSamplerateChanges(t *testing.T) {
	t.Parallel()

	old := testConfiguration(t)
	raw := old.Raw
	raw.Devices.Samplerate = 44100
	next, err := config.Validate(&raw)
	require.NoError(t, err)

	assert.Equal(t, ReloadRestart, ClassifyReload(old, next))
}

func TestRateAdjust_ConvergesTowardTargetLevel(t *testing.T) {
	t.Parallel()

	r := NewRateAdjust(500, 1024)
	r.K = 0.01
	for i := 0; i < 200; i++ {
		r.Update(700) // buffer consistently above target
	}
	assert.Greater(t, r.Ratio(), 1.0, "a persistently high buffer level raises the ratio above 1")
}

func TestRateAdjust_ClampsToConfiguredRange(t *testing.T) {
	t.Parallel()

	r := NewRateAdjust(0, 1)
	r.K = 1000
	for i := 0; i < 50; i++ {
		r.Update(1_000_000)
	}
	assert.LessOrEqual(t, r.Ratio(), 1.1)
}
