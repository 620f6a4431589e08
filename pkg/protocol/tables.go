package protocol

// Header symbols, in table order.
const (
	SymbolController  = '$'
	SymbolInterpreter = '#'
	SymbolSetter      = '>'
	SymbolGetter      = '<'
)

// Command names.
const (
	ApplyDiff     = "AD"
	ApplyNative   = "AN"
	HomePosition  = "HP"
	LegacyPlay    = "MP"
	LegacyStop    = "MS"
	PlayMotion    = "PM"
	StopMotion    = "SM"
	PopCode       = "PO"
	PushCode      = "PU"
	ResetQueue    = "RI"
	HomeAngle     = "HO"
	JointSettings = "JS"
	MaxAngle      = "MA"
	MotionFrame   = "MF"
	MotionHeader  = "MH"
	MinAngle      = "MI"
	Motion        = "MO"
	VersionInfo   = "VI"
)

// Argument lengths in bytes.
const (
	JointArgs  = 5
	SlotArgs   = 2
	PushArgs   = 4
	FrameArgs  = 104
	HeaderArgs = 35
)

// Command is one entry of a command table.
type Command struct {
	Name string
	Args int
	// Raw arguments are taken verbatim instead of as hex digits.
	Raw bool
}

// Table is the set of commands reachable from one header symbol. Commands
// are sorted by name.
type Table struct {
	Symbol   byte
	Name     string
	Commands []Command
	names    StringGroup
}

func newTable(symbol byte, name string, cmds ...Command) Table {
	t := Table{Symbol: symbol, Name: name, Commands: cmds}
	for _, c := range cmds {
		t.names = append(t.names, c.Name)
	}
	return t
}

// Tables lists the command tables in header symbol order.
var Tables = []Table{
	newTable(SymbolController, "controller",
		Command{Name: ApplyDiff, Args: JointArgs},
		Command{Name: ApplyNative, Args: JointArgs},
		Command{Name: HomePosition},
		Command{Name: LegacyPlay, Args: SlotArgs},
		Command{Name: LegacyStop},
		Command{Name: PlayMotion, Args: SlotArgs},
		Command{Name: StopMotion},
	),
	newTable(SymbolInterpreter, "interpreter",
		Command{Name: PopCode},
		Command{Name: PushCode, Args: PushArgs},
		Command{Name: ResetQueue},
	),
	newTable(SymbolSetter, "setter",
		Command{Name: HomeAngle, Args: JointArgs},
		Command{Name: JointSettings},
		Command{Name: MaxAngle, Args: JointArgs},
		Command{Name: MotionFrame, Args: FrameArgs},
		Command{Name: MotionHeader, Args: HeaderArgs, Raw: true},
		Command{Name: MinAngle, Args: JointArgs},
	),
	newTable(SymbolGetter, "getter",
		Command{Name: JointSettings},
		Command{Name: Motion, Args: SlotArgs},
		Command{Name: VersionInfo},
	),
}

var headers = func() CharGroup {
	b := make([]byte, len(Tables))
	for i, t := range Tables {
		b[i] = t.Symbol
	}
	return CharGroup(b)
}()
