package joint

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Setting holds the calibrated range of a single joint.
type Setting struct {
	Min  int `json:"min"`
	Max  int `json:"max"`
	Home int `json:"home"`
}

// Settings holds the calibration of every joint in channel order.
type Settings [Sum]Setting

// Calibration memory layout: one sentinel byte followed by packed
// {min, max, home} little-endian int16 triples.
const (
	SentinelAddress = 0
	SentinelValue   = 0x02
	SettingsAddress = 1

	fieldSize   = 2
	settingSize = 3 * fieldSize

	// MemorySize is the number of calibration bytes including the sentinel.
	MemorySize = SettingsAddress + Sum*settingSize
)

type field int

const (
	fieldMin field = iota
	fieldMax
	fieldHome
)

var defaultHomes = [Sum]int{
	0, 150, 350, -100, -100, -50, 500, 300, -50, // left side
	AngleNeutral, AngleNeutral, AngleNeutral,
	0, -150, -350, 100, 100, 50, -500, -300, 50, // right side
	AngleNeutral, AngleNeutral, AngleNeutral,
}

// DefaultSettings returns the factory calibration.
func DefaultSettings() Settings {
	var s Settings
	for id := range s {
		s[id] = Setting{Min: AngleMin, Max: AngleMax, Home: defaultHomes[id]}
	}
	return s
}

// Valid reports whether the setting is inside the absolute travel limits
// and ordered.
func (s Setting) Valid() bool {
	return s.Min >= AngleMin && s.Max <= AngleMax && s.Min < s.Max &&
		s.Home >= s.Min && s.Home <= s.Max
}

// Clamp trims angle into the calibrated range.
func (s Setting) Clamp(angle int) int {
	if angle < s.Min {
		return s.Min
	}
	if angle > s.Max {
		return s.Max
	}
	return angle
}

func fieldAddress(id int, f field) int {
	return SettingsAddress + id*settingSize + int(f)*fieldSize
}

// Encode packs the settings into the calibration memory layout, without
// the sentinel byte.
func (s *Settings) Encode() []byte {
	buf := make([]byte, Sum*settingSize)
	for id, st := range s {
		off := id * settingSize
		binary.LittleEndian.PutUint16(buf[off:], uint16(int16(st.Min)))
		binary.LittleEndian.PutUint16(buf[off+2:], uint16(int16(st.Max)))
		binary.LittleEndian.PutUint16(buf[off+4:], uint16(int16(st.Home)))
	}
	return buf
}

// DecodeSettings unpacks settings written by Encode.
func DecodeSettings(buf []byte) (Settings, error) {
	var s Settings
	if len(buf) != Sum*settingSize {
		return s, fmt.Errorf("decode settings: got %d bytes, want %d", len(buf), Sum*settingSize)
	}
	for id := range s {
		off := id * settingSize
		s[id] = Setting{
			Min:  int(int16(binary.LittleEndian.Uint16(buf[off:]))),
			Max:  int(int16(binary.LittleEndian.Uint16(buf[off+2:]))),
			Home: int(int16(binary.LittleEndian.Uint16(buf[off+4:]))),
		}
	}
	return s, nil
}

// Dump writes the settings as a JSON array of {max, min, home}.
func (s *Settings) Dump(w io.Writer) error {
	type entry struct {
		Max  int `json:"max"`
		Min  int `json:"min"`
		Home int `json:"home"`
	}
	entries := make([]entry, 0, Sum)
	for _, st := range s {
		entries = append(entries, entry{Max: st.Max, Min: st.Min, Home: st.Home})
	}
	data, err := json.MarshalIndent(entries, "", "\t")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
