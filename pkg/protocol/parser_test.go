package protocol

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	before   []Event
	after    []Event
	complete []string
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		BeforeTransit: func(ev Event) {
			r.before = append(r.before, ev)
			if ev.Complete {
				r.complete = append(r.complete, ev.String())
			}
		},
		AfterTransit: func(ev Event) { r.after = append(r.after, ev) },
	}
}

func newTestParser(t *testing.T) (*Parser, *recorder) {
	r := &recorder{}
	return NewParser(WithHooks(r.hooks()), WithLogger(zaptest.NewLogger(t).Sugar())), r
}

func TestParserCommands(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"$AN0003C", []string{"$AN0003C"}},
		{"$an0003c", []string{"$AN0003c"}},
		{"$HP", []string{"$HP"}},
		{"$PM05$SM", []string{"$PM05", "$SM"}},
		{"$MP05$MS", []string{"$MP05", "$MS"}},
		{"#PU0503#PO#RI", []string{"#PU0503", "#PO", "#RI"}},
		{"<JS<MO05<VI", []string{"<JS", "<MO05", "<VI"}},
		{">JS>HO01FFF>MA02384>MI03C7C", []string{">JS", ">HO01FFF", ">MA02384", ">MI03C7C"}},
		// Bad bytes drop only the line they appear in.
		{"\r\n$HP\n", []string{"$HP"}},
		{"$XX$HP", []string{"$HP"}},
		{"$AN00G3C$HP", []string{"$HP"}},
		{"<AD$SM", []string{"$SM"}},
	}
	for _, tt := range tests {
		p, r := newTestParser(t)
		p.Write([]byte(tt.in))
		if diff := cmp.Diff(tt.want, r.complete); diff != "" {
			t.Errorf("%q: completed commands mismatch (-want +got):\n%s", tt.in, diff)
		}
		if p.State() != HeaderIncoming || p.Buffered() != 0 {
			t.Errorf("%q: parser left in %v with %d bytes", tt.in, p.State(), p.Buffered())
		}
	}
}

func TestParserAbort(t *testing.T) {
	p, r := newTestParser(t)

	for _, b := range []byte("$AN00") {
		p.Feed(b)
	}
	if p.State() != ArgumentsIncoming || p.Buffered() != 2 || p.Expected() != JointArgs {
		t.Fatalf("state %v buffered %d expected %d", p.State(), p.Buffered(), p.Expected())
	}

	// Still collecting: nothing is validated before the part is complete.
	p.Feed('z')
	if p.State() != ArgumentsIncoming || p.Buffered() != 3 {
		t.Fatalf("premature validation: state %v buffered %d", p.State(), p.Buffered())
	}
	p.Feed('0')
	p.Feed('0')
	if p.State() != HeaderIncoming || p.Buffered() != 0 || p.Expected() != 1 {
		t.Errorf("after abort: state %v buffered %d expected %d", p.State(), p.Buffered(), p.Expected())
	}
	if p.Aborts() != 1 {
		t.Errorf("Aborts = %d, want 1", p.Aborts())
	}
	if len(r.complete) != 0 {
		t.Errorf("aborted line completed: %v", r.complete)
	}

	// A bad header byte aborts at once.
	p.Feed('!')
	if p.State() != HeaderIncoming || p.Buffered() != 0 || p.Aborts() != 2 {
		t.Errorf("bad header: state %v buffered %d aborts %d", p.State(), p.Buffered(), p.Aborts())
	}
}

func TestParserHooks(t *testing.T) {
	p, r := newTestParser(t)
	var states []State
	p.hooks.BeforeTransit = func(ev Event) {
		states = append(states, p.State())
		r.before = append(r.before, ev)
	}

	if done := p.Feed('$'); done {
		t.Error("header completed a line")
	}
	p.Feed('A')
	if done := p.Feed('D'); done {
		t.Error("command with arguments completed a line")
	}
	var done bool
	for _, b := range []byte("17FF6") {
		done = p.Feed(b)
	}
	if !done {
		t.Error("last argument byte did not complete the line")
	}

	want := []Event{
		{State: HeaderIncoming, Symbol: '$', Data: []byte("$")},
		{State: CommandIncoming, Symbol: '$', Command: ApplyDiff, Data: []byte("AD")},
		{State: ArgumentsIncoming, Symbol: '$', Command: ApplyDiff, Data: []byte("17FF6"), Complete: true},
	}
	if diff := cmp.Diff(want, r.before); diff != "" {
		t.Errorf("before events mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, r.after); diff != "" {
		t.Errorf("after events mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]State{HeaderIncoming, CommandIncoming, ArgumentsIncoming}, states); diff != "" {
		t.Errorf("before hook ran in the wrong state (-want +got):\n%s", diff)
	}
	if got := r.before[2].Arguments(); !bytes.Equal(got, []byte("17FF6")) {
		t.Errorf("Arguments = %q", got)
	}
	if r.before[1].Arguments() != nil {
		t.Error("command event has arguments")
	}
}

func TestParserRawHeaderArguments(t *testing.T) {
	p, r := newTestParser(t)
	args := bytes.Repeat([]byte{'x'}, HeaderArgs)
	args[5] = 0
	args[6] = '\n'

	p.Write(append([]byte(">MH"), args...))
	if len(r.complete) != 1 || p.Aborts() != 0 {
		t.Fatalf("raw header arguments rejected: %v, %d aborts", r.complete, p.Aborts())
	}
	last := r.before[len(r.before)-1]
	if !bytes.Equal(last.Arguments(), args) {
		t.Errorf("arguments = %q", last.Arguments())
	}

	// Frames stay hex.
	p.Write(append([]byte(">MF"), bytes.Repeat([]byte{'x'}, FrameArgs)...))
	if len(r.complete) != 1 || p.Aborts() != 1 {
		t.Errorf("non-hex frame arguments accepted")
	}
}

func TestParserReset(t *testing.T) {
	p, r := newTestParser(t)
	p.Write([]byte("#PU05"))
	p.Reset()
	p.Write([]byte("03"))
	if len(r.complete) != 0 {
		t.Errorf("line completed across Reset: %v", r.complete)
	}
	p.Write([]byte("#PU0503"))
	if diff := cmp.Diff([]string{"#PU0503"}, r.complete); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name  string
		v     Validator
		in    string
		index int
		ok    bool
	}{
		{"char first", CharGroup("$#><"), "$", 0, true},
		{"char last", CharGroup("$#><"), "<", 3, true},
		{"char miss", CharGroup("$#><"), "a", -1, false},
		{"char empty", CharGroup("$#><"), "", -1, false},
		{"string first", Tables[0].names, "AD", 0, true},
		{"string last", Tables[0].names, "SM", 6, true},
		{"string case", Tables[0].names, "pm", 5, true},
		{"string middle", Tables[2].names, "MF", 3, true},
		{"string miss", Tables[0].names, "ZZ", -1, false},
		{"string long", Tables[0].names, "ADX", -1, false},
		{"hex", HexString{}, "0aF9", 0, true},
		{"hex bad", HexString{}, "0aG9", -1, false},
		{"hex empty", HexString{}, "", -1, false},
		{"nil", Nil{}, "\x00\xff", 0, true},
	}
	for _, tt := range tests {
		i, ok := tt.v.Validate([]byte(tt.in))
		if i != tt.index || ok != tt.ok {
			t.Errorf("%s: Validate(%q) = %d, %v, want %d, %v", tt.name, tt.in, i, ok, tt.index, tt.ok)
		}
	}
}

func TestTablesSorted(t *testing.T) {
	for _, tbl := range Tables {
		for i := 1; i < len(tbl.Commands); i++ {
			if tbl.Commands[i-1].Name >= tbl.Commands[i].Name {
				t.Errorf("%s table not sorted at %s", tbl.Name, tbl.Commands[i].Name)
			}
		}
		for _, c := range tbl.Commands {
			if c.Args >= BufferSize {
				t.Errorf("%c%s arguments do not fit the buffer", tbl.Symbol, c.Name)
			}
		}
	}
}
