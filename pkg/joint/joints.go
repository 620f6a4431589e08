// Package joint drives the 24 servo joints: calibration, angle to pulse
// mapping and the multiplexed PWM tick handler.
package joint

import "fmt"

// Joint counts and absolute travel limits, in tenths of a degree.
const (
	Sum = 24

	AngleMin     = -700
	AngleMax     = 700
	AngleNeutral = 0
)

// Pulse widths in timer counts for the absolute travel limits.
const (
	PWMMin     = 480
	PWMMax     = 820
	PWMNeutral = 650
)

// Name identifies a joint by its body position.
type Name string

// Joint names in channel order. Channels 9-11 and 21-23 are unused on the
// stock frame and keep the neutral home angle.
var names = [Sum]Name{
	"left_shoulder_pitch",
	"left_thigh_yaw",
	"left_shoulder_roll",
	"left_elbow_roll",
	"left_thigh_roll",
	"left_thigh_pitch",
	"left_knee_pitch",
	"left_foot_pitch",
	"left_foot_roll",
	"spare_09",
	"spare_10",
	"spare_11",
	"right_shoulder_pitch",
	"right_thigh_yaw",
	"right_shoulder_roll",
	"right_elbow_roll",
	"right_thigh_roll",
	"right_thigh_pitch",
	"right_knee_pitch",
	"right_foot_pitch",
	"right_foot_roll",
	"spare_21",
	"spare_22",
	"spare_23",
}

// AllNames returns all joint names in channel order.
func AllNames() []Name {
	out := make([]Name, Sum)
	copy(out, names[:])
	return out
}

// NameOf returns the name of a joint channel.
func NameOf(id int) Name {
	if id < 0 || id >= Sum {
		return Name(fmt.Sprintf("joint_%d", id))
	}
	return names[id]
}

// Valid reports whether id addresses a joint channel.
func Valid(id int) bool {
	return id >= 0 && id < Sum
}
