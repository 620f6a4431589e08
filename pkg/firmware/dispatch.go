package firmware

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gwillem/motioncore/pkg/interpreter"
	"github.com/gwillem/motioncore/pkg/joint"
	"github.com/gwillem/motioncore/pkg/motion"
	"github.com/gwillem/motioncore/pkg/protocol"
)

// dispatch runs a completed command line. Failures are logged and leave
// everything as it was.
func (c *Controller) dispatch(ev protocol.Event) {
	if !ev.Complete {
		return
	}
	if c.idle != nil {
		c.idle.UserInput()
	}
	if err := c.run(ev); err != nil {
		c.logger.Warnw("command failed", "command", ev.String(), "error", err)
		c.log("%s: %v", ev, err)
		return
	}
	c.logger.Debugw("command done", "command", ev.String())
}

func (c *Controller) run(ev protocol.Event) error {
	args := ev.Arguments()
	switch ev.Symbol {
	case protocol.SymbolController:
		return c.control(ev.Command, args)
	case protocol.SymbolInterpreter:
		return c.interpret(ev.Command, args)
	case protocol.SymbolSetter:
		return c.set(ev.Command, args)
	case protocol.SymbolGetter:
		return c.get(ev.Command, args)
	}
	return fmt.Errorf("unknown header %q", ev.Symbol)
}

func (c *Controller) control(cmd string, args []byte) error {
	switch cmd {
	case protocol.ApplyDiff, protocol.ApplyNative:
		id, angle, err := protocol.JointArguments(args)
		if err != nil {
			return err
		}
		var ok bool
		if cmd == protocol.ApplyDiff {
			ok = c.joints.SetAngleDiff(id, angle)
		} else {
			ok = c.joints.SetAngle(id, angle)
		}
		if !ok {
			return fmt.Errorf("joint %d out of range", id)
		}
	case protocol.HomePosition:
		for id := 0; id < joint.Sum; id++ {
			c.joints.SetAngleDiff(id, 0)
		}
		c.player.Stop()
	case protocol.PlayMotion, protocol.LegacyPlay:
		slot, err := protocol.SlotArguments(args)
		if err != nil {
			return err
		}
		if !c.player.Play(slot) {
			return fmt.Errorf("cannot play motion %d", slot)
		}
		c.log("Playing motion %d", slot)
	case protocol.StopMotion, protocol.LegacyStop:
		c.player.WillStop()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (c *Controller) interpret(cmd string, args []byte) error {
	switch cmd {
	case protocol.PopCode:
		if !c.queue.PopCode() {
			return errors.New("nothing to pop")
		}
	case protocol.PushCode:
		slot, count, err := protocol.PushArguments(args)
		if err != nil {
			return err
		}
		if !motion.ValidSlot(slot) {
			return fmt.Errorf("slot %d: %w", slot, motion.ErrSlotRange)
		}
		if !c.queue.PushCode(interpreter.Code{Slot: uint8(slot), LoopCount: uint8(count)}) {
			return errors.New("queue full")
		}
	case protocol.ResetQueue:
		c.queue.Reset()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (c *Controller) set(cmd string, args []byte) error {
	switch cmd {
	case protocol.HomeAngle, protocol.MaxAngle, protocol.MinAngle:
		id, angle, err := protocol.JointArguments(args)
		if err != nil {
			return err
		}
		var ok bool
		switch cmd {
		case protocol.HomeAngle:
			ok = c.joints.SetHomeAngle(id, angle)
		case protocol.MaxAngle:
			ok = c.joints.SetMaxAngle(id, angle)
		default:
			ok = c.joints.SetMinAngle(id, angle)
		}
		if !ok {
			return fmt.Errorf("joint %d: angle %d rejected", id, angle)
		}
	case protocol.JointSettings:
		return c.joints.ResetSettings()
	case protocol.MotionHeader:
		h, err := protocol.HeaderArguments(args)
		if err != nil {
			return err
		}
		return c.motions.SetHeader(&h)
	case protocol.MotionFrame:
		slot, f, err := protocol.FrameArguments(args)
		if err != nil {
			return err
		}
		return c.motions.SetFrame(slot, &f)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (c *Controller) get(cmd string, args []byte) error {
	switch cmd {
	case protocol.JointSettings:
		return c.joints.Dump(c.out)
	case protocol.Motion:
		slot, err := protocol.SlotArguments(args)
		if err != nil {
			return err
		}
		return c.motions.Dump(c.out, slot)
	case protocol.VersionInfo:
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "\t")
		return enc.Encode(c.info)
	}
	return fmt.Errorf("unknown command %q", cmd)
}
