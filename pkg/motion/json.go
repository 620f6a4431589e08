package motion

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/gwillem/motioncore/pkg/joint"
)

// Motion is the JSON form of a stored motion, shared by dumps and motion
// files.
type Motion struct {
	Slot   int           `json:"slot"`
	Name   string        `json:"name"`
	Codes  []Code        `json:"codes"`
	Frames []MotionFrame `json:"frames"`
}

// Code is a control flow entry: {"func": "loop", "args": [begin, end,
// count]} or {"func": "jump", "args": [slot]}.
type Code struct {
	Func string `json:"func"`
	Args []int  `json:"args"`
}

// MotionFrame is the JSON form of a Frame.
type MotionFrame struct {
	TransitionTime int      `json:"transition_time_ms"`
	Outputs        []Output `json:"outputs"`
}

// Output is the angle of one joint.
type Output struct {
	Device int `json:"device"`
	Value  int `json:"value"`
}

// FromRecords builds the JSON form of a header and its frames.
func FromRecords(h Header, frames []Frame) Motion {
	m := Motion{
		Slot:   h.Slot,
		Name:   h.Name,
		Codes:  []Code{},
		Frames: make([]MotionFrame, 0, len(frames)),
	}
	if h.UseLoop {
		m.Codes = append(m.Codes, Code{Func: "loop", Args: []int{h.LoopBegin, h.LoopEnd, h.LoopCount}})
	}
	if h.UseJump {
		m.Codes = append(m.Codes, Code{Func: "jump", Args: []int{h.JumpSlot}})
	}
	for _, f := range frames {
		mf := MotionFrame{TransitionTime: f.TransitionTime, Outputs: make([]Output, joint.Sum)}
		for id, a := range f.Angles {
			mf.Outputs[id] = Output{Device: id, Value: a}
		}
		m.Frames = append(m.Frames, mf)
	}
	return m
}

// Records converts the JSON form back into records. Names longer than
// NameLength bytes are cut on a rune boundary; joints without an output keep a zero offset.
func (m *Motion) Records() (Header, []Frame, error) {
	h := Header{
		Slot:        m.Slot,
		Name:        m.Name,
		FrameLength: len(m.Frames),
	}
	if len(h.Name) > NameLength {
		n := NameLength
		for n > 0 && !utf8.RuneStart(h.Name[n]) {
			n--
		}
		h.Name = h.Name[:n]
	}

	for _, c := range m.Codes {
		switch c.Func {
		case "loop":
			if len(c.Args) != 3 {
				return h, nil, invalid("loop code takes 3 arguments, got %d", len(c.Args))
			}
			h.UseLoop = true
			h.LoopBegin, h.LoopEnd, h.LoopCount = c.Args[0], c.Args[1], c.Args[2]
		case "jump":
			if len(c.Args) != 1 {
				return h, nil, invalid("jump code takes 1 argument, got %d", len(c.Args))
			}
			h.UseJump = true
			h.JumpSlot = c.Args[0]
		default:
			return h, nil, invalid("unknown code %q", c.Func)
		}
	}
	if err := h.Validate(); err != nil {
		return h, nil, err
	}

	frames := make([]Frame, len(m.Frames))
	for i, mf := range m.Frames {
		f := Frame{Index: i, TransitionTime: mf.TransitionTime}
		for _, out := range mf.Outputs {
			if !joint.Valid(out.Device) {
				return h, nil, invalid("frame %d: device %d", i, out.Device)
			}
			f.Angles[out.Device] = out.Value
		}
		if err := f.Validate(); err != nil {
			return h, nil, fmt.Errorf("frame %d: %w", i, err)
		}
		frames[i] = f
	}
	return h, frames, nil
}

// ReadMotion decodes a JSON motion.
func ReadMotion(r io.Reader) (Motion, error) {
	var m Motion
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return m, fmt.Errorf("parse motion JSON: %w", err)
	}
	return m, nil
}

// LoadMotionFile reads a JSON motion file.
func LoadMotionFile(path string) (Motion, error) {
	f, err := os.Open(path)
	if err != nil {
		return Motion{}, fmt.Errorf("open motion file: %w", err)
	}
	defer f.Close()
	return ReadMotion(f)
}

// Load reads a motion with all of its frames.
func (s *Store) Load(slot int) (Motion, error) {
	h, err := s.Header(slot)
	if err != nil {
		return Motion{}, err
	}
	frames := make([]Frame, 0, h.FrameLength)
	for i := 0; i < h.FrameLength; i++ {
		f, err := s.Frame(slot, i)
		if err != nil {
			return Motion{}, err
		}
		frames = append(frames, f)
	}
	return FromRecords(h, frames), nil
}

// Dump writes a motion as indented JSON.
func (s *Store) Dump(w io.Writer, slot int) error {
	m, err := s.Load(slot)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "\t")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// Install validates a motion and writes its header and frames. Nothing is
// written when validation fails.
func (s *Store) Install(m Motion) error {
	h, frames, err := m.Records()
	if err != nil {
		return fmt.Errorf("install %q: %w", m.Name, err)
	}
	if err := s.SetHeader(&h); err != nil {
		return err
	}
	for i := range frames {
		if err := s.SetFrame(h.Slot, &frames[i]); err != nil {
			return err
		}
	}
	s.logger.Infow("motion installed", "slot", h.Slot, "name", h.Name, "frames", h.FrameLength)
	return nil
}
