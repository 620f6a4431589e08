package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/motioncore/pkg/config"
)

type Options struct {
	Config string `short:"c" long:"config" default:"motioncore.yaml" description:"Configuration file"`

	Run       RunCommand       `command:"run" description:"Run the motion core on serial or stdin input"`
	Install   InstallCommand   `command:"install" description:"Install motion files into the motion memory"`
	Dump      DumpCommand      `command:"dump" description:"List stored motions or dump one as JSON"`
	Calibrate CalibrateCommand `command:"calibrate" alias:"cal" description:"Edit joint calibration"`
	Ports     PortsCommand     `command:"ports" description:"List serial ports"`
	Init      InitCommand      `command:"init" description:"Write a default configuration file"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "motioncore - PLEN2 compatible humanoid motion controller"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// loadConfig reads the configured file. A missing default file falls back
// to the built-in configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigFrom(opts.Config)
	if errors.Is(err, fs.ErrNotExist) && opts.Config == config.DefaultConfigFile {
		return config.Default(), nil
	}
	return cfg, err
}

type InitCommand struct {
	Force bool `short:"f" long:"force" description:"Overwrite an existing file"`
}

func (c *InitCommand) Execute(args []string) error {
	if _, err := os.Stat(opts.Config); err == nil && !c.Force {
		return fmt.Errorf("%s exists, use --force to overwrite", opts.Config)
	}
	if err := config.Default().SaveTo(opts.Config); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("Configuration written to " + opts.Config))
	return nil
}
