package main

import (
	"strings"
	"testing"

	"github.com/gwillem/motioncore/pkg/hw"
	"github.com/gwillem/motioncore/pkg/joint"
	"github.com/gwillem/motioncore/pkg/motion"
	"github.com/gwillem/motioncore/pkg/storage"
)

func TestApplySetting(t *testing.T) {
	joints := joint.NewController(joint.NewMapMemory(), hw.NewRecorder(nil), &joint.ManualTimer{})
	if err := joints.LoadSettings(); err != nil {
		t.Fatal(err)
	}

	tests := []joint.Setting{
		{Min: -100, Max: 100, Home: 0},
		// Entirely above the previous range.
		{Min: 200, Max: 400, Home: 300},
		// Entirely below it again.
		{Min: -600, Max: -300, Home: -450},
		// Min and home on the previous max.
		{Min: -300, Max: 0, Home: -300},
	}
	for _, want := range tests {
		if err := applySetting(joints, 4, want); err != nil {
			t.Fatalf("applySetting(%+v): %v", want, err)
		}
		if got := joints.Settings()[4]; got != want {
			t.Errorf("setting = %+v, want %+v", got, want)
		}
	}

	if err := applySetting(joints, 4, joint.Setting{Min: -100, Max: 100, Home: 500}); err == nil {
		t.Error("home outside the limits accepted")
	}
}

func TestMotionTable(t *testing.T) {
	store, err := motion.NewStore(storage.NewEEPROM(storage.NewImageBus(), storage.WithWriteCycle(0)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := motionTable(store); !strings.Contains(got, "No motions") {
		t.Errorf("empty store table = %q", got)
	}

	m := motion.Motion{
		Slot:   7,
		Name:   "wave",
		Codes:  []motion.Code{{Func: "loop", Args: []int{0, 1, motion.LoopInfinite}}},
		Frames: []motion.MotionFrame{{TransitionTime: 100}, {TransitionTime: 100}},
	}
	if err := store.Install(m); err != nil {
		t.Fatal(err)
	}
	got := motionTable(store)
	for _, want := range []string{"wave", "0-1 ×∞"} {
		if !strings.Contains(got, want) {
			t.Errorf("table does not contain %q:\n%s", want, got)
		}
	}
}
