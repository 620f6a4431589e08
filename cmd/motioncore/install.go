package main

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/gwillem/motioncore/pkg/motion"
	"github.com/gwillem/motioncore/pkg/protocol"
)

type InstallCommand struct {
	Serial bool          `short:"s" long:"serial" description:"Send the motions to a running device instead of writing the memory directly"`
	Port   string        `short:"p" long:"port" description:"Serial port, overrides the configuration"`
	Pause  time.Duration `long:"pause" default:"20ms" description:"Pause after each command line sent over serial"`
	Args   struct {
		Files []string `positional-arg-name:"FILE" required:"1"`
	} `positional-args:"yes" required:"yes"`
}

func (c *InstallCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if c.Port != "" {
		cfg.Serial.Port = c.Port
	}

	// Validate every file before touching the device.
	motions := make([]motion.Motion, 0, len(c.Args.Files))
	for _, path := range c.Args.Files {
		m, err := motion.LoadMotionFile(path)
		if err != nil {
			return err
		}
		if _, _, err := m.Records(); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		motions = append(motions, m)
	}

	if c.Serial {
		if cfg.Serial.Port == "" {
			return fmt.Errorf("no serial port configured")
		}
		port, err := serial.Open(cfg.Serial.Port, &serial.Mode{BaudRate: cfg.Serial.BaudRate})
		if err != nil {
			return fmt.Errorf("open %s: %w", cfg.Serial.Port, err)
		}
		defer port.Close()
		for _, m := range motions {
			if err := c.send(port, m); err != nil {
				return err
			}
			fmt.Printf("  Sent %s\n", describe(m))
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("Sent %d motion(s) to %s", len(motions), cfg.Serial.Port)))
		return nil
	}

	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	store, err := s.openMotions()
	if err != nil {
		return err
	}
	for _, m := range motions {
		if err := store.Install(m); err != nil {
			return err
		}
		fmt.Printf("  Installed %s\n", describe(m))
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Installed %d motion(s)", len(motions))))
	return nil
}

// send writes the header and frame install commands of a motion.
func (c *InstallCommand) send(w io.Writer, m motion.Motion) error {
	h, frames, err := m.Records()
	if err != nil {
		return err
	}
	lines := [][]byte{protocol.HeaderLine(&h)}
	for i := range frames {
		lines = append(lines, protocol.FrameLine(h.Slot, &frames[i]))
	}
	for _, l := range lines {
		if _, err := w.Write(l); err != nil {
			return fmt.Errorf("send motion %d: %w", h.Slot, err)
		}
		time.Sleep(c.Pause)
	}
	return nil
}

func describe(m motion.Motion) string {
	return fmt.Sprintf("%02d %q (%d frames)", m.Slot, m.Name, len(m.Frames))
}
