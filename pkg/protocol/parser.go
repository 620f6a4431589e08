// Package protocol parses the command byte stream.
//
// A command line is a header symbol selecting a command table, a two
// character command name and a fixed number of argument bytes:
//
//	$AN0003C   set joint 0 to 60 (6.0 degrees)
//	#PU0503    queue slot 5, looped three times
//	<VI        print version info
//
// There is no terminator. The parser knows from the tables how many bytes
// each part takes, validates every part as soon as it is complete, and
// drops the whole line on the first invalid part.
package protocol

import (
	"fmt"

	"go.uber.org/zap"
)

// BufferSize is the capacity of the byte buffer. It is a power of two and
// larger than the longest argument string.
const BufferSize = 128

// State is the part of a command line the parser expects next.
type State int

const (
	HeaderIncoming State = iota
	CommandIncoming
	ArgumentsIncoming
)

func (s State) String() string {
	switch s {
	case HeaderIncoming:
		return "header"
	case CommandIncoming:
		return "command"
	case ArgumentsIncoming:
		return "arguments"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Event describes a state transition. Data holds a copy of the bytes
// collected for State.
type Event struct {
	State   State
	Symbol  byte
	Command string
	Data    []byte
	// Complete is set on the transition that finishes a command line.
	Complete bool
}

// Arguments returns the argument bytes of a completed command, or nil for
// commands without arguments.
func (e Event) Arguments() []byte {
	if e.State != ArgumentsIncoming {
		return nil
	}
	return e.Data
}

func (e Event) String() string {
	return fmt.Sprintf("%c%s%s", e.Symbol, e.Command, e.Arguments())
}

// Hooks run around every transition. BeforeTransit sees the parser still in
// the state being left.
type Hooks struct {
	BeforeTransit func(Event)
	AfterTransit  func(Event)
}

// Parser is the byte-level state machine. It is not safe for concurrent
// use.
type Parser struct {
	hooks  Hooks
	logger *zap.SugaredLogger

	buf   [BufferSize]byte
	pos   int
	state State
	want  int

	table   int
	command int
	matched int

	aborts uint64
}

// Option configures a Parser.
type Option func(*Parser)

// WithHooks sets the transition hooks.
func WithHooks(h Hooks) Option {
	return func(p *Parser) { p.hooks = h }
}

// WithLogger sets the logger used for aborted lines.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *Parser) { p.logger = l }
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(p)
	}
	p.Reset()
	return p
}

// State returns the state the parser is in.
func (p *Parser) State() State {
	return p.state
}

// Buffered returns the number of bytes collected for the current state.
func (p *Parser) Buffered() int {
	return p.pos
}

// Expected returns the number of bytes the current state needs.
func (p *Parser) Expected() int {
	return p.want
}

// Aborts returns the number of lines dropped as invalid.
func (p *Parser) Aborts() uint64 {
	return p.aborts
}

// Put appends one byte to the buffer.
func (p *Parser) Put(b byte) {
	p.buf[p.pos] = b
	p.pos = (p.pos + 1) & (BufferSize - 1)
}

// Accept validates the buffer once enough bytes for the current state have
// arrived. An invalid buffer aborts the line.
func (p *Parser) Accept() bool {
	if p.pos < p.want {
		return false
	}
	i, ok := p.validator().Validate(p.buf[:p.pos])
	if !ok {
		p.abort()
		return false
	}
	p.matched = i
	return true
}

func (p *Parser) validator() Validator {
	switch p.state {
	case HeaderIncoming:
		return headers
	case CommandIncoming:
		return Tables[p.table].names
	}
	if Tables[p.table].Commands[p.command].Raw {
		return Nil{}
	}
	return HexString{}
}

// TransitState moves on after a successful Accept and empties the buffer.
func (p *Parser) TransitState() {
	ev := Event{
		State: p.state,
		Data:  append([]byte(nil), p.buf[:p.pos]...),
	}

	next := HeaderIncoming
	want := 1
	switch p.state {
	case HeaderIncoming:
		p.table = p.matched
		next = CommandIncoming
		want = 2
	case CommandIncoming:
		p.command = p.matched
		if n := Tables[p.table].Commands[p.command].Args; n > 0 {
			next = ArgumentsIncoming
			want = n
		} else {
			ev.Complete = true
		}
	case ArgumentsIncoming:
		ev.Complete = true
	}
	ev.Symbol = Tables[p.table].Symbol
	if p.state != HeaderIncoming {
		ev.Command = Tables[p.table].Commands[p.command].Name
	}

	if p.hooks.BeforeTransit != nil {
		p.hooks.BeforeTransit(ev)
	}
	p.state = next
	p.want = want
	p.pos = 0
	if p.hooks.AfterTransit != nil {
		p.hooks.AfterTransit(ev)
	}
}

// Feed puts one byte and transits when it completes a valid part. It
// reports whether the byte finished a command line.
func (p *Parser) Feed(b byte) bool {
	p.Put(b)
	if !p.Accept() {
		return false
	}
	done := p.state == ArgumentsIncoming ||
		(p.state == CommandIncoming && Tables[p.table].Commands[p.matched].Args == 0)
	p.TransitState()
	return done
}

// Write feeds every byte of b. It never fails.
func (p *Parser) Write(b []byte) (int, error) {
	for _, c := range b {
		p.Feed(c)
	}
	return len(b), nil
}

// Reset drops any partial line.
func (p *Parser) Reset() {
	p.pos = 0
	p.state = HeaderIncoming
	p.want = 1
	p.table = 0
	p.command = 0
}

func (p *Parser) abort() {
	p.logger.Debugw("command line dropped", "state", p.state, "data", string(p.buf[:p.pos]))
	p.aborts++
	p.Reset()
}
