package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/gwillem/motioncore/pkg/firmware"
	"github.com/gwillem/motioncore/pkg/joint"
)

type RunCommand struct {
	Port    string `short:"p" long:"port" description:"Serial port for commands, overrides the configuration"`
	Monitor bool   `short:"m" long:"monitor" description:"Show a live joint monitor (needs a serial port)"`
	Joints  []int  `short:"j" long:"joint" description:"Joint to chart in the monitor, repeatable"`
}

func (c *RunCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if c.Port != "" {
		cfg.Serial.Port = c.Port
	}
	if c.Monitor && cfg.Serial.Port == "" {
		return errors.New("the monitor needs a serial port for commands")
	}
	for _, id := range c.Joints {
		if !joint.Valid(id) {
			return fmt.Errorf("joint %d out of range", id)
		}
	}

	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	if c.Monitor {
		// The monitor owns the terminal.
		s.logger = zap.NewNop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	fw, in, err := c.open(ctx, s)
	if err != nil {
		s.Close()
		return err
	}
	defer fw.Close()

	if !c.Monitor {
		err := fw.Start(ctx, in)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := fw.Start(ctx, in); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("main loop failed", zap.Error(err))
		}
	}()

	joints := c.Joints
	if len(joints) == 0 {
		joints = defaultMonitorJoints
	}
	p := tea.NewProgram(newMonitorModel(fw, s.mirror, cfg.Serial.Port, joints), tea.WithAltScreen())
	_, err = p.Run()
	cancel()
	<-done
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	return nil
}

// open builds the firmware controller. The controller owns every opened
// resource once this returns without error.
func (c *RunCommand) open(ctx context.Context, s *session) (*firmware.Controller, io.Reader, error) {
	cfg := s.cfg
	logger := s.logger.Sugar()

	motions, err := s.openMotions()
	if err != nil {
		return nil, nil, err
	}
	out, err := s.openOutputs(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	joints, err := s.openJoints(out, joint.NewTickerTimer(cfg.TickPeriod()))
	if err != nil {
		return nil, nil, err
	}

	var in io.Reader = os.Stdin
	var reply io.Writer = os.Stdout
	if cfg.Serial.Port != "" {
		port, err := serial.Open(cfg.Serial.Port, &serial.Mode{BaudRate: cfg.Serial.BaudRate})
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", cfg.Serial.Port, err)
		}
		s.closers = append(s.closers, port)
		in, reply = port, port
		logger.Infow("listening", "port", cfg.Serial.Port, "baud", cfg.Serial.BaudRate)
	}

	fw, err := firmware.New(firmware.Config{
		Joints:       joints,
		Motions:      motions,
		Output:       reply,
		PollInterval: cfg.PollInterval(),
		ExitOnEOF:    cfg.Serial.Port == "",
		Closers:      s.takeClosers(),
		Logger:       logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return fw, in, nil
}
