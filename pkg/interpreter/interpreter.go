// Package interpreter queues motion plays so they run one after another.
package interpreter

import (
	"go.uber.org/zap"

	"github.com/gwillem/motioncore/pkg/motion"
)

// QueueSize is the ring capacity. It must be a power of two; one entry is
// kept free to tell a full queue from an empty one.
const QueueSize = 32

const mask = QueueSize - 1

// Code is a queued play request. A LoopCount of zero plays the motion once,
// LoopInfinite repeats it until stopped.
type Code struct {
	Slot      uint8
	LoopCount uint8
}

// Player is the part of the playback controller the queue drives.
type Player interface {
	Play(slot int) bool
	Header() motion.Header
	ConfigureLoop(begin, end, count int) bool
	DisableJump()
	Stop()
}

// Interpreter is a fixed-size queue of Codes. Like the playback controller
// it is owned by the main loop.
type Interpreter struct {
	player Player
	logger *zap.SugaredLogger

	queue      [QueueSize]Code
	begin, end int
}

// New returns an empty queue feeding player.
func New(player Player, logger *zap.SugaredLogger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Interpreter{player: player, logger: logger}
}

// PushCode appends a code. It returns false and changes nothing when the
// queue is full.
func (in *Interpreter) PushCode(c Code) bool {
	if (in.end+1)&mask == in.begin {
		in.logger.Warnw("motion queue overflow", "slot", c.Slot)
		return false
	}
	in.queue[in.end] = c
	in.end = (in.end + 1) & mask
	return true
}

// PopCode removes the oldest code and plays it. The motion loops over all
// of its frames LoopCount times and never jumps. It returns false when the
// queue is empty or the motion could not be started.
func (in *Interpreter) PopCode() bool {
	if !in.Ready() {
		return false
	}
	c := in.queue[in.begin]
	in.begin = (in.begin + 1) & mask

	if !in.player.Play(int(c.Slot)) {
		in.logger.Warnw("queued motion not played", "slot", c.Slot)
		return false
	}
	h := in.player.Header()
	in.player.ConfigureLoop(0, h.FrameLength-1, int(c.LoopCount))
	in.player.DisableJump()
	return true
}

// Ready reports whether a code is waiting.
func (in *Interpreter) Ready() bool {
	return in.begin != in.end
}

// Len returns the number of waiting codes.
func (in *Interpreter) Len() int {
	return (in.end - in.begin) & mask
}

// Reset drops every waiting code and stops playback.
func (in *Interpreter) Reset() {
	in.begin = 0
	in.end = 0
	in.player.Stop()
}
