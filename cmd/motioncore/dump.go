package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/motioncore/pkg/hw"
	"github.com/gwillem/motioncore/pkg/joint"
	"github.com/gwillem/motioncore/pkg/motion"
)

type DumpCommand struct {
	Slot        int  `short:"s" long:"slot" default:"-1" description:"Dump one motion as JSON"`
	Calibration bool `long:"calibration" description:"Show the joint calibration instead of motions"`
}

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableNameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	tableErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
)

func (c *DumpCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if c.Calibration {
		joints, err := s.openJoints(hw.NewRecorder(nil), &joint.ManualTimer{})
		if err != nil {
			return err
		}
		fmt.Println(calibrationTable(joints.Settings()))
		return nil
	}

	store, err := s.openMotions()
	if err != nil {
		return err
	}
	if c.Slot >= 0 {
		return store.Dump(os.Stdout, c.Slot)
	}
	fmt.Println(motionTable(store))
	return nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...)
}

// motionTable lists every slot holding a motion. Never written slots are
// skipped.
func motionTable(store *motion.Store) string {
	var rows [][]string
	failed := map[int]bool{}
	for slot := motion.SlotBegin; slot < motion.SlotEnd; slot++ {
		h, err := store.Header(slot)
		if errors.Is(err, motion.ErrVersion) {
			continue
		}
		if err != nil {
			failed[len(rows)] = true
			rows = append(rows, []string{strconv.Itoa(slot), err.Error(), "", "", ""})
			continue
		}
		loop, jump := "-", "-"
		if h.UseLoop {
			count := strconv.Itoa(h.LoopCount)
			if h.LoopCount == motion.LoopInfinite {
				count = "∞"
			}
			loop = fmt.Sprintf("%d-%d ×%s", h.LoopBegin, h.LoopEnd, count)
		}
		if h.UseJump {
			jump = strconv.Itoa(h.JumpSlot)
		}
		rows = append(rows, []string{strconv.Itoa(slot), h.Name, strconv.Itoa(h.FrameLength), loop, jump})
	}
	if len(rows) == 0 {
		return dimStyle.Render("No motions installed.")
	}

	return newTable("Slot", "Name", "Frames", "Loop", "Jump").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case failed[row]:
				return tableErrorStyle
			case col == 1:
				return tableNameStyle
			default:
				return tableCellStyle
			}
		}).
		Render()
}

func calibrationTable(settings joint.Settings) string {
	rows := make([][]string, 0, joint.Sum)
	for id, s := range settings {
		rows = append(rows, []string{
			strconv.Itoa(id),
			string(joint.NameOf(id)),
			strconv.Itoa(s.Min),
			strconv.Itoa(s.Max),
			strconv.Itoa(s.Home),
		})
	}
	return newTable("ID", "Joint", "Min", "Max", "Home").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case col == 1:
				return tableNameStyle
			default:
				return tableCellStyle
			}
		}).
		Render()
}
