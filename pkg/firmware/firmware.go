// Package firmware wires the joint engine, playback, the motion queue and
// the command parser into the main loop of the robot.
package firmware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gwillem/motioncore/pkg/interpreter"
	"github.com/gwillem/motioncore/pkg/joint"
	"github.com/gwillem/motioncore/pkg/motion"
	"github.com/gwillem/motioncore/pkg/playback"
	"github.com/gwillem/motioncore/pkg/protocol"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

// Info is printed by the version info command.
type Info struct {
	Device   string `json:"device"`
	Codename string `json:"codename"`
	Version  string `json:"version"`
}

// DefaultInfo describes this build.
func DefaultInfo() Info {
	return Info{Device: "PLEN2", Codename: "motioncore", Version: Version}
}

// Sensor samples the on-board IMU.
type Sensor interface {
	Sample() error
}

// IdleBehavior runs while nothing is played or queued, for example to get
// up after a fall. UserInput is called for every accepted command.
type IdleBehavior interface {
	Idle()
	UserInput()
}

// State is a snapshot of the main loop for monitoring.
type State struct {
	Playback  playback.Snapshot
	Queued    int
	Aborts    uint64
	Timestamp time.Time
}

// Config holds the collaborators of a Controller. Joints and Motions are
// required.
type Config struct {
	Joints  *joint.Controller
	Motions *motion.Store
	// Output receives replies to getter commands. Defaults to io.Discard.
	Output io.Writer
	Sensor Sensor
	Idle   IdleBehavior
	Info   Info
	// PollInterval is the main loop period. Defaults to 1ms.
	PollInterval time.Duration
	// ExitOnEOF makes Start return once input ends and nothing is left to
	// play.
	ExitOnEOF bool
	// Closers are closed, in order, by Close.
	Closers []io.Closer
	Logger  *zap.SugaredLogger
}

// Controller runs the cooperative main loop. Everything except Close,
// States and Logs must be called from the loop goroutine.
type Controller struct {
	joints  *joint.Controller
	motions *motion.Store
	player  *playback.Controller
	queue   *interpreter.Interpreter
	parser  *protocol.Parser
	out     io.Writer
	sensor  Sensor
	idle    IdleBehavior
	info    Info
	poll    time.Duration
	exitEOF bool
	closers []io.Closer
	logger  *zap.SugaredLogger

	mu      sync.Mutex
	running bool
	stateCh chan State
	logCh   chan string
}

// New creates a controller. The joint controller must have its settings
// loaded for outputs to run.
func New(cfg Config) (*Controller, error) {
	if cfg.Joints == nil || cfg.Motions == nil {
		return nil, errors.New("firmware: joints and motions are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}
	if cfg.Info == (Info{}) {
		cfg.Info = DefaultInfo()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Millisecond
	}

	c := &Controller{
		joints:  cfg.Joints,
		motions: cfg.Motions,
		out:     cfg.Output,
		sensor:  cfg.Sensor,
		idle:    cfg.Idle,
		info:    cfg.Info,
		poll:    cfg.PollInterval,
		exitEOF: cfg.ExitOnEOF,
		closers: cfg.Closers,
		logger:  cfg.Logger,
		stateCh: make(chan State, 1),
		logCh:   make(chan string, 10),
	}
	c.player = playback.New(cfg.Joints, cfg.Joints.Handoff(), cfg.Motions, cfg.Logger.Named("playback"))
	c.queue = interpreter.New(c.player, cfg.Logger.Named("queue"))
	c.parser = protocol.NewParser(
		protocol.WithHooks(protocol.Hooks{BeforeTransit: c.dispatch}),
		protocol.WithLogger(cfg.Logger.Named("protocol")),
	)
	return c, nil
}

// Player returns the playback state machine.
func (c *Controller) Player() *playback.Controller {
	return c.player
}

// Queue returns the motion queue.
func (c *Controller) Queue() *interpreter.Interpreter {
	return c.queue
}

// States returns a channel that receives state updates. Old states are
// dropped when the reader falls behind.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives user-facing messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Close stops the joint timer and closes the configured closers.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	c.joints.Stop()
	var err error
	for _, cl := range c.closers {
		err = multierr.Append(err, cl.Close())
	}
	return err
}

func (c *Controller) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case c.logCh <- msg:
	default:
	}
}

// Feed passes input bytes to the command parser.
func (c *Controller) Feed(b []byte) {
	c.parser.Write(b)
}

// Step is one main loop iteration: advance playback by at most one
// interpolation step, start the next queued motion when idle, otherwise
// give the idle behavior a turn.
func (c *Controller) Step() {
	switch {
	case c.player.Playing():
		if c.player.FrameUpdatable() {
			c.player.UpdateFrame()
		}
		if c.player.UpdatingFinished() {
			c.player.LoadNextFrame()
			if !c.player.Playing() {
				c.log("Motion %d finished", c.player.Header().Slot)
			}
		}
	case c.queue.Ready():
		if c.queue.PopCode() {
			c.log("Playing queued motion %d", c.player.Header().Slot)
		}
	default:
		if c.sensor != nil {
			if err := c.sensor.Sample(); err != nil {
				c.logger.Debugw("sensor sample failed", "error", err)
			}
		}
		if c.idle != nil {
			c.idle.Idle()
		}
	}
}

// Busy reports whether a motion is playing or queued.
func (c *Controller) Busy() bool {
	return c.player.Playing() || c.queue.Ready()
}

// State returns the current snapshot.
func (c *Controller) State() State {
	return State{
		Playback:  c.player.Snapshot(),
		Queued:    c.queue.Len(),
		Aborts:    c.parser.Aborts(),
		Timestamp: time.Now(),
	}
}

// Start runs the main loop until ctx is cancelled, reading commands from
// in. A nil in runs without input.
func (c *Controller) Start(ctx context.Context, in io.Reader) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("already running")
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	var input chan []byte
	if in != nil {
		input = make(chan []byte, 16)
		go c.read(ctx, in, input)
	}
	c.log("Main loop started, %s poll", c.poll)

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	eof := false
	for {
		select {
		case <-ctx.Done():
			c.player.Stop()
			c.log("Main loop stopped")
			return ctx.Err()
		case b, ok := <-input:
			if !ok {
				input = nil
				eof = true
				c.logger.Debugw("input closed")
				continue
			}
			c.Feed(b)
		case <-ticker.C:
			c.Step()
			c.sendState(c.State())
			if eof && c.exitEOF && !c.Busy() {
				c.log("Input finished")
				return nil
			}
		}
	}
}

func (c *Controller) read(ctx context.Context, in io.Reader, out chan<- []byte) {
	defer close(out)
	buf := make([]byte, protocol.BufferSize)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			b := append([]byte(nil), buf[:n]...)
			select {
			case out <- b:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Warnw("input read failed", "error", err)
			}
			return
		}
	}
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		select {
		case <-c.stateCh:
		default:
		}
		select {
		case c.stateCh <- s:
		default:
		}
	}
}
