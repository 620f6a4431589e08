package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"
)

type PortsCommand struct {
	Scan  bool `long:"scan" description:"Scan each port for feetech bus servos"`
	MaxID int  `long:"max-id" default:"24" description:"Highest servo id to scan for"`
	Baud  int  `long:"baud" default:"1000000" description:"Servo bus baud rate"`
}

func (c *PortsCommand) Execute(args []string) error {
	ports, err := serial.GetPortsList()
	if err != nil {
		return fmt.Errorf("list ports: %w", err)
	}

	var shown int
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		shown++
		if !c.Scan {
			fmt.Println(port)
			continue
		}
		servos, err := c.scan(port)
		switch {
		case err != nil:
			fmt.Printf("%s %s\n", port, dimStyle.Render(err.Error()))
		case len(servos) == 0:
			fmt.Printf("%s %s\n", port, dimStyle.Render("no servos"))
		default:
			ids := make([]string, len(servos))
			for i, s := range servos {
				ids[i] = fmt.Sprint(s.ID)
			}
			fmt.Printf("%s %s\n", port, successStyle.Render("servos "+strings.Join(ids, ",")))
		}
	}
	if shown == 0 {
		fmt.Println("No serial ports found.")
	}
	return nil
}

func (c *PortsCommand) scan(port string) ([]feetech.FoundServo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: c.Baud,
		Protocol: feetech.ProtocolSTS,
		Timeout:  50 * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	defer bus.Close()
	return bus.Scan(ctx, 1, c.MaxID)
}
