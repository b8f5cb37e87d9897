package app

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soocke/pixel-aim-go/config"
	"github.com/soocke/pixel-aim-go/domain/action"
	"github.com/soocke/pixel-aim-go/domain/capture"
	"github.com/soocke/pixel-aim-go/domain/detect"
	"github.com/soocke/pixel-aim-go/domain/display"
	"github.com/soocke/pixel-aim-go/domain/engine"
	"github.com/soocke/pixel-aim-go/domain/motion"
	"github.com/soocke/pixel-aim-go/domain/predict"
	"github.com/soocke/pixel-aim-go/domain/record"
	"github.com/soocke/pixel-aim-go/domain/telemetry"
)

// ErrStopTimeout is returned by Stop when the worker did not exit in time and
// had to be interrupted.
var ErrStopTimeout = errors.New("app: worker did not stop in time")

const (
	idleDelay     = 50 * time.Millisecond
	statsInterval = 5 * time.Second
	noticeTimeout = 6 * time.Second
)

// FrameSource is the capture layer as seen by the coordinator.
type FrameSource interface {
	Capture(region image.Rectangle, p capture.Params) (*capture.Frame, error)
	NotifyDisplayChanged()
	LogStats()
	Close() error
}

// Deps are the collaborators of the coordinator. Engine and Recorder may be nil.
type Deps struct {
	Config   *config.Store
	Topology display.Topology
	Source   FrameSource
	Engine   engine.Engine
	Sink     action.Sink
	Keys     action.Keys
	Overlay  telemetry.Overlay
	Notices  *telemetry.Once
	Recorder *record.Recorder
	Logger   *slog.Logger
	Seed     uint64
}

// Coordinator drives capture, detection and aiming on one worker goroutine.
// Stages of one tick run strictly in order and ticks never overlap.
type Coordinator struct {
	d       Deps
	logger  *slog.Logger
	bench   *Benchmarks
	now     func() time.Time
	pre     *detect.Preprocessor
	sel     detect.Selector
	preds   predict.Holder
	shaper  *motion.Shaper
	trigger *motion.AutoTrigger

	state     LoopState
	listeners []StateListener
	lastStats time.Time

	running atomic.Bool
	stop    atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex // guards running transitions
}

func NewCoordinator(d Deps) *Coordinator {
	if d.Notices == nil {
		d.Notices = &telemetry.Once{}
	}
	if d.Keys == nil {
		d.Keys = action.NoKeys{}
	}
	c := &Coordinator{
		d:      d,
		logger: d.Logger,
		bench:  NewBenchmarks(),
		now:    time.Now,
		shaper: motion.NewShaper(d.Seed),
	}
	if d.Sink != nil {
		c.trigger = motion.NewAutoTrigger(d.Sink, d.Logger)
	}
	return c
}

// AddListener registers l for state changes. Must be called before Start.
func (c *Coordinator) AddListener(l StateListener) { c.listeners = append(c.listeners, l) }

// State returns the state of the last tick. Only meaningful on the worker or
// after Stop.
func (c *Coordinator) State() LoopState { return c.state }

// Benchmarks exposes the stage timings.
func (c *Coordinator) Benchmarks() *Benchmarks { return c.bench }

// Start launches the worker. It is a no-op when already running.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running.Load() {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	c.stop.Store(false)
	c.running.Store(true)
	go c.run(ctx, c.done)
	if c.logger != nil {
		c.logger.Info("coordinator started")
	}
}

// Stop raises the stop flag and waits up to timeout for the worker, which
// releases the capture and engine resources itself on exit. When the worker
// does not exit in time its context is cancelled and ErrStopTimeout is
// returned without waiting further; the resources are released once the
// blocked stage returns. Calling Stop again waits for that exit.
func (c *Coordinator) Stop(timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running.Load() {
		return nil
	}
	c.stop.Store(true)
	select {
	case <-c.done:
	case <-time.After(timeout):
		c.cancel()
		if c.logger != nil {
			c.logger.Warn("coordinator stop timed out, interrupting", "timeout", timeout)
		}
		return ErrStopTimeout
	}
	c.cancel()
	c.running.Store(false)
	if c.logger != nil {
		c.logger.Info("coordinator stopped")
	}
	return nil
}

// Done is closed once the worker has exited and released its resources.
func (c *Coordinator) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Coordinator) release() {
	if c.trigger != nil {
		c.trigger.Wait()
	}
	if c.d.Source != nil {
		if err := c.d.Source.Close(); err != nil && c.logger != nil {
			c.logger.Error("capture close", "error", err)
		}
	}
	if c.d.Engine != nil {
		if err := c.d.Engine.Close(); err != nil && c.logger != nil {
			c.logger.Error("engine close", "error", err)
		}
	}
	c.bench.Log(c.logger)
}

func (c *Coordinator) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer c.release()
	for !c.stop.Load() {
		if ctx.Err() != nil {
			return
		}
		if c.safeTick() == StateIdle {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleDelay):
			}
		}
	}
}

// safeTick runs one tick and recovers a panic so the worker keeps running.
func (c *Coordinator) safeTick() (st LoopState) {
	defer func() {
		if r := recover(); r != nil {
			st = StateArmed
			if c.logger != nil {
				c.logger.Error("tick panic", "error", r, "stack", string(debug.Stack()))
			}
		}
	}()
	return c.tick()
}

// tick runs one pass of the pipeline against the current snapshot.
func (c *Coordinator) tick() LoopState {
	now := c.now()
	snap := c.d.Config.Snapshot()
	cfg := &snap.Config
	c.maybeLogStats(now)

	held := c.d.Keys.Held(cfg.AimKey) || c.d.Keys.Held(cfg.SecondAimKey)
	c.setState(Evaluate(cfg, held))
	if c.state == StateIdle {
		c.hideOverlay()
		return c.state
	}

	disp, err := c.d.Topology.Current()
	if err != nil {
		if c.logger != nil {
			c.logger.Error("display query", "error", err)
		}
		return c.state
	}
	cursor, cursorOK := c.d.Topology.Cursor()
	region := capture.Region(display.ReticleCenter(disp, cfg.Area, cursor, cursorOK), cfg.DetectionSize)

	stop := c.bench.Time("capture")
	frame, err := c.d.Source.Capture(region, capture.ParamsFrom(cfg, disp))
	stop()
	if err != nil {
		if c.logger != nil {
			c.logger.Debug("capture failed", "error", err)
		}
	}
	if frame == nil {
		c.hideOverlay()
		return c.state
	}
	defer capture.Release(frame)

	grid, ok := c.infer(frame, cfg)
	var (
		target detect.Target
		found  bool
	)
	if ok {
		stop = c.bench.Time("select")
		target, found = c.sel.Select(grid, detect.SelectParams{
			Size:          cfg.DetectionSize,
			MinConfidence: cfg.MinConfidence,
			FOVSize:       cfg.FOVWindow(),
			Region:        region,
		})
		stop()
	}
	c.collect(frame, target, found, cfg)
	c.bench.Frame()

	if !found {
		c.hideOverlay()
		return c.state
	}
	if cfg.ShowDetected && c.d.Overlay != nil {
		c.d.Overlay.Show(target.Screen, target.Confidence)
	} else {
		c.hideOverlay()
	}
	if c.state != StateActive {
		return c.state
	}
	if cfg.AutoTrigger && c.trigger != nil {
		c.trigger.Fire(cfg.TriggerDelay.Std())
	}
	if cfg.AimAssist {
		c.aim(target, disp, region, cfg, now)
	}
	return c.state
}

// infer converts the frame and runs the engine. ok is false when no output
// grid is available this tick.
func (c *Coordinator) infer(frame *capture.Frame, cfg *config.Config) (detect.Grid, bool) {
	if c.pre == nil || c.pre.Size() != cfg.DetectionSize {
		c.pre = detect.NewPreprocessor(cfg.DetectionSize, 0)
	}
	stop := c.bench.Time("preprocess")
	tensor, err := c.pre.Tensor(frame)
	stop()
	if err != nil {
		if c.logger != nil {
			c.logger.Debug("preprocess failed", "error", err)
		}
		return detect.Grid{}, false
	}
	if c.d.Engine == nil {
		c.d.Notices.NoticeOnce(engine.NoticeUnavailable, "No detection model is loaded. Detection is disabled.", noticeTimeout)
		return detect.Grid{}, false
	}
	stop = c.bench.Time("inference")
	grid, err := c.d.Engine.Infer(tensor)
	stop()
	if err != nil {
		if errors.Is(err, detect.ErrUndecodable) {
			c.d.Notices.NoticeOnce(engine.NoticeShape, "Model output cannot be decoded. Detection is disabled.", noticeTimeout)
		} else if c.logger != nil {
			c.logger.Debug("inference failed", "error", err)
		}
		return detect.Grid{}, false
	}
	return grid, true
}

// aim maps the target to an aim point, predicts, shapes and emits the move.
func (c *Coordinator) aim(t detect.Target, disp display.Display, region image.Rectangle, cfg *config.Config, now time.Time) {
	x, y := detect.AimPoint(t.Box, detect.AimParamsFrom(cfg, disp.Bounds, region))
	if cfg.Predictions {
		x, y = c.preds.Get(cfg.PredictionMethod, predict.ParamsFrom(cfg)).Update(x, y, now)
	}
	center := disp.Center()
	vec := motion.Vec{X: x - float64(center.X), Y: y - float64(center.Y)}
	dx, dy := c.shaper.Shape(vec, motion.ParamsFrom(cfg, disp.AspectRatio()))
	if c.d.Sink == nil {
		return
	}
	stop := c.bench.Time("move")
	err := c.d.Sink.Move(dx, dy)
	stop()
	if err != nil && c.logger != nil {
		c.logger.Error("pointer move", "error", err)
	}
}

// collect hands the frame to the recorder: labelled with the target when one
// was found, unlabelled otherwise unless auto labelling is on.
func (c *Coordinator) collect(frame *capture.Frame, t detect.Target, found bool, cfg *config.Config) {
	if c.d.Recorder == nil || !cfg.CollectData {
		return
	}
	var label *detect.Candidate
	if found {
		label = &t.Candidate
	} else if cfg.AutoLabel {
		return
	}
	stop := c.bench.Time("save_frame")
	_, err := c.d.Recorder.Save(frame, label, record.ParamsFrom(cfg))
	stop()
	if err != nil && c.logger != nil {
		c.logger.Error("save frame", "error", err)
	}
}

func (c *Coordinator) hideOverlay() {
	if c.d.Overlay != nil {
		c.d.Overlay.Hide()
	}
}

func (c *Coordinator) setState(next LoopState) {
	prev := c.state
	if prev == next {
		return
	}
	c.state = next
	if c.logger != nil {
		c.logger.Debug("loop state transition", "from", prev.String(), "to", next.String())
	}
	for _, l := range c.listeners {
		l(prev, next)
	}
}

func (c *Coordinator) maybeLogStats(now time.Time) {
	if c.logger == nil {
		return
	}
	if c.lastStats.IsZero() {
		c.lastStats = now
		return
	}
	if now.Sub(c.lastStats) < statsInterval {
		return
	}
	c.lastStats = now
	c.d.Source.LogStats()
	c.bench.Log(c.logger)
}
