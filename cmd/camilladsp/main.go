// Command camilladsp runs the capture -> processing -> playback engine
// described by a CamillaDSP-style YAML configuration file.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/camilladsp-go/camilladsp/internal/audio"
	"github.com/camilladsp-go/camilladsp/internal/buildinfo"
	"github.com/camilladsp-go/camilladsp/internal/config"
	"github.com/camilladsp-go/camilladsp/internal/control"
	"github.com/camilladsp-go/camilladsp/internal/device"
	"github.com/camilladsp-go/camilladsp/internal/dsp"
	"github.com/camilladsp-go/camilladsp/internal/engine"
	"github.com/camilladsp-go/camilladsp/internal/logging"
	"github.com/camilladsp-go/camilladsp/internal/pipeline"
	"github.com/camilladsp-go/camilladsp/internal/supervisor"
)

// version/buildDate/instanceID are overridden at build time via
// -ldflags "-X main.version=... -X main.buildDate=... -X main.instanceID=...".
var (
	version    = "dev"
	buildDate  = "unknown"
	instanceID = "unknown"
)

func main() {
	root := rootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "camilladsp",
		Short: "Realtime audio DSP pipeline engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			logging.Init(logging.Config{Level: level})
			return run(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", viper.GetBool("debug"), "enable debug logging")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

// runningStages is the set of goroutines and shared objects started by
// startStages for one configuration's device section, kept alive until a
// restart-class reload or shutdown (spec.md §4.5 "Reload").
type runningStages struct {
	cancel     context.CancelFunc
	done       chan struct{}
	processing *engine.Processing
	pool       *pipeline.WorkerPool
}

func run(ctx context.Context, configPath string) error {
	logger := logging.ForService("main")

	doc, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	raw, err := config.Load(doc)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg, err := config.Validate(raw)
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	faders := dsp.NewFaderBank()
	commands := make(chan control.Command, 4)
	status := control.NewStatusChannel(256)
	build := &buildinfo.Context{Version: version, BuildDate: buildDate, InstanceID: instanceID}
	logger.Info("engine starting", "version", build.GetVersion(), "build_date", build.GetBuildDate(), "instance_id", build.GetInstanceID())

	stages, err := startStages(cfg, faders, status)
	if err != nil {
		return fmt.Errorf("start stages: %w", err)
	}

	sup := supervisor.New(supervisor.Config{
		Commands:      commands,
		Status:        status,
		Processing:    stages.processing,
		Faders:        faders,
		Configuration: cfg,
		ConfigPath:    configPath,
		Build:         build,
		Registry:      prometheus.NewRegistry(),
	})

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go sup.Run(runCtx)

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)

	for {
		select {
		case <-runCtx.Done():
			stages.cancel()
			<-stages.done
			logger.Info("shutdown complete")
			return nil

		case <-reload:
			logger.Info("SIGHUP received, reloading configuration", "path", configPath)
			doc, err := os.ReadFile(configPath)
			if err != nil {
				logger.Error("reload: read config failed", "error", err)
				continue
			}

			reply := make(chan control.Reply, 1)
			commands <- control.Command{Kind: control.Reload, ConfigYAML: doc, Reply: reply}
			r := <-reply
			if r.Err != nil {
				logger.Error("reload: rejected", "error", r.Err)
				continue
			}

			next := sup.Configuration()
			if sup.LastReloadKind() == supervisor.ReloadRestart {
				logger.Info("reload requires stage restart")
				stages.cancel()
				<-stages.done
				stages, err = startStages(next, faders, status)
				if err != nil {
					return fmt.Errorf("restart stages: %w", err)
				}
				sup.SetProcessing(stages.processing)
			} else {
				logger.Info("reload applied as hot swap")
				pl, err := pipeline.Build(next, faders, stages.pool)
				if err != nil {
					logger.Error("hot swap pipeline build failed", "error", err)
					continue
				}
				stages.processing.SetPipeline(pl)
			}
		}
	}
}

// startStages opens the capture/playback devices, builds the pipeline,
// and launches the three stage goroutines (spec.md §4.4). The returned
// handle's done channel closes once all three stages have exited,
// whether from cancellation or a fatal device error.
func startStages(cfg *config.Configuration, faders *dsp.FaderBank, status *control.StatusChannel) (*runningStages, error) {
	d := cfg.Raw.Devices
	chunksize := d.Chunksize

	captureDev, err := openCaptureDevice(d.Capture, d.Samplerate)
	if err != nil {
		return nil, fmt.Errorf("open capture device: %w", err)
	}
	playbackDev, err := openPlaybackDevice(d.Playback, d.Samplerate)
	if err != nil {
		return nil, fmt.Errorf("open playback device: %w", err)
	}

	qcp := audio.NewQueue(d.Queuelimit)
	qpp := audio.NewQueue(d.Queuelimit)
	pool := audio.NewPool(d.Capture.Channels, chunksize)

	var workerPool *pipeline.WorkerPool
	if d.Multithreaded {
		workerPool = pipeline.NewWorkerPool(pipeline.DefaultWorkerCount())
	}

	pl, err := pipeline.Build(cfg, faders, workerPool)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	processing := engine.NewProcessing(engine.ProcessingConfig{In: qcp, Out: qpp, Status: status})
	processing.SetPipeline(pl)

	capture := engine.NewCapture(engine.CaptureConfig{
		Device:           captureDev,
		Out:              qcp,
		Pool:             pool,
		Status:           status,
		SilenceThreshold: d.SilenceThreshold,
		SilenceTimeout:   secondsToDuration(d.SilenceTimeout),
	})
	playback := engine.NewPlayback(engine.PlaybackConfig{
		Device:       playbackDev,
		In:           qpp,
		Status:       status,
		AdjustPeriod: secondsToDuration(d.AdjustPeriod),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		finished := make(chan struct{}, 3)
		go func() { capture.Run(ctx); finished <- struct{}{} }()
		go func() { processing.Run(ctx); finished <- struct{}{} }()
		go func() { playback.Run(ctx); finished <- struct{}{} }()
		for i := 0; i < 3; i++ {
			<-finished
		}
		qcp.Close()
		qpp.Close()
	}()

	return &runningStages{cancel: cancel, done: done, processing: processing, pool: workerPool}, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func openCaptureDevice(ep config.RawEndpoint, sampleRate int) (device.CaptureDevice, error) {
	switch ep.Type {
	case "File":
		return device.NewFileCapture(ep.Filename, sampleFormat(ep.Format), sampleRate, ep.Channels)
	case "Flac":
		return device.NewFLACCapture(ep.Filename)
	case "Stdin":
		return device.NewStdinCapture(sampleFormat(ep.Format), sampleRate, ep.Channels), nil
	case "Null":
		return device.NewNullCapture(sampleRate, ep.Channels), nil
	default:
		return device.NewMalgoCapture(ep.Device, sampleRate, ep.Channels), nil
	}
}

func openPlaybackDevice(ep config.RawEndpoint, sampleRate int) (device.PlaybackDevice, error) {
	switch ep.Type {
	case "File":
		return device.NewFilePlayback(ep.Filename, sampleFormat(ep.Format), ep.Channels)
	case "Stdout":
		return device.NewStdoutPlayback(sampleFormat(ep.Format), ep.Channels), nil
	case "Null":
		return device.NewNullPlayback(ep.Channels), nil
	default:
		return device.NewMalgoPlayback(ep.Device, sampleRate, ep.Channels), nil
	}
}

func sampleFormat(f config.DeviceFormat) device.SampleFormat {
	switch f {
	case config.FormatS24LE, config.FormatS24LE3:
		return device.FormatS24LE
	case config.FormatS32LE:
		return device.FormatS32LE
	case config.FormatFloat32LE:
		return device.FormatFloat32LE
	case config.FormatFloat64LE:
		return device.FormatFloat64LE
	default:
		return device.FormatS16LE
	}
}
