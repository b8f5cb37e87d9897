package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/soocke/pixel-aim-go/config"
	"github.com/soocke/pixel-aim-go/debug"
	"github.com/soocke/pixel-aim-go/domain/action"
	"github.com/soocke/pixel-aim-go/domain/capture"
	"github.com/soocke/pixel-aim-go/domain/display"
	"github.com/soocke/pixel-aim-go/domain/engine"
	"github.com/soocke/pixel-aim-go/domain/record"
	"github.com/soocke/pixel-aim-go/domain/telemetry"
)

const (
	displayPoll = 500 * time.Millisecond
	stopTimeout = time.Second
)

// Container assembles the platform backends, the capture source, the engine
// and the coordinator.
type Container struct {
	Config      *config.Store
	Logger      *slog.Logger
	Topology    display.Topology
	Source      *capture.Source
	Engine      engine.Engine
	Watcher     *display.Watcher
	Coordinator *Coordinator
}

// BuildContainer constructs all components. Failing to load the model is not
// fatal: the coordinator runs without an engine and shows a notice.
func BuildContainer(store *config.Store, logger *slog.Logger) *Container {
	cfg := store.Snapshot().Config
	c := &Container{Config: store, Logger: logger, Topology: display.SystemTopology{}}

	notices := &telemetry.Once{Next: telemetry.LogNotifier{Logger: logger}}
	c.Source = capture.NewSource(capture.NewPlatformDuplicator(), capture.NewPlatformBlitter(), notices.Next, logger)

	if e, err := engine.LoadONNX(cfg.ModelPath, cfg.DetectionSize, cfg.DetectionSlots, notices, logger); err != nil {
		if logger != nil {
			logger.Error("engine load failed", "model", cfg.ModelPath, "error", err)
		}
		notices.NoticeOnce(engine.NoticeUnavailable, "The detection model could not be loaded: "+err.Error(), noticeTimeout)
	} else {
		c.Engine = e
	}

	var sink action.Sink = &action.LogSink{Logger: logger}
	if !cfg.DryRun {
		sink = action.NewPlatformSink()
	}

	c.Coordinator = NewCoordinator(Deps{
		Config:   store,
		Topology: c.Topology,
		Source:   c.Source,
		Engine:   c.Engine,
		Sink:     sink,
		Keys:     action.NewPlatformKeys(),
		Overlay:  &telemetry.LogOverlay{Logger: logger, Interval: time.Second},
		Notices:  notices,
		Recorder: record.New(cfg.DataDir, logger),
		Logger:   logger,
		Seed:     uint64(time.Now().UnixNano()),
	})
	c.Coordinator.AddListener(func(prev, next LoopState) {
		if logger != nil {
			logger.Info("loop state", "from", prev.String(), "to", next.String())
		}
	})
	c.Watcher = display.NewWatcher(c.Topology, displayPoll, func(_, _ display.Display) {
		c.Source.NotifyDisplayChanged()
	}, logger)
	return c
}

// Run starts the watcher and the coordinator and blocks until ctx is done,
// then shuts everything down.
func (c *Container) Run(ctx context.Context) error {
	if c.Config.Snapshot().Debug && c.Logger != nil {
		debug.StartGoroutineLogger(ctx, 5*time.Second, c.Logger)
		debug.StartMemLogger(ctx, 5*time.Second, c.Logger)
	}
	c.Watcher.Start()
	c.Coordinator.Start(ctx)
	<-ctx.Done()
	c.Watcher.Stop()
	return c.Coordinator.Stop(stopTimeout)
}
