package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/gwillem/motioncore/pkg/joint"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type CalibrateCommand struct {
	Reset bool `long:"reset" description:"Restore the factory calibration"`
}

func (c *CalibrateCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	// Drive the real outputs so the joint shows each new home angle.
	out, err := s.openOutputs(context.Background(), nil)
	if err != nil {
		return err
	}
	joints, err := s.openJoints(out, joint.NewTickerTimer(cfg.TickPeriod()))
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("motioncore Calibration"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	if c.Reset {
		if err := joints.ResetSettings(); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Factory calibration restored."))
		return nil
	}

	for {
		id, err := selectJoint(joints)
		if err != nil {
			return formExit(err)
		}
		setting, err := editSetting(joints, id)
		if errors.Is(err, huh.ErrUserAborted) {
			return formExit(err)
		}
		if err == nil {
			err = applySetting(joints, id, setting)
		}
		if err != nil {
			fmt.Println(errorStyle.Render(err.Error()))
		} else {
			joints.SetAngle(id, setting.Home)
			fmt.Println(successStyle.Render(fmt.Sprintf("Saved %s: min %d, max %d, home %d",
				joint.NameOf(id), setting.Min, setting.Max, setting.Home)))
		}
		fmt.Println()

		more := true
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Calibrate another joint?").
					Affirmative("Yes").
					Negative("Done").
					Value(&more),
			),
		)
		if err := form.Run(); err != nil {
			return formExit(err)
		}
		if !more {
			break
		}
	}

	fmt.Println(calibrationTable(joints.Settings()))
	fmt.Printf("Calibration saved to %s\n", cfg.Calibration.Path)
	return nil
}

// formExit turns an aborted form into a clean exit.
func formExit(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		fmt.Println()
		return nil
	}
	return err
}

func selectJoint(joints *joint.Controller) (int, error) {
	settings := joints.Settings()
	options := make([]huh.Option[int], 0, joint.Sum)
	for id, s := range settings {
		label := fmt.Sprintf("%2d %-22s %5d %5d %5d", id, joint.NameOf(id), s.Min, s.Max, s.Home)
		options = append(options, huh.NewOption(label, id))
	}

	var id int
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Which joint?").
				Description("id, name, min, max and home in tenths of a degree").
				Options(options...).
				Height(12).
				Value(&id),
		),
	)
	return id, form.Run()
}

func angleInput(title string, value *string) *huh.Input {
	return huh.NewInput().
		Title(title).
		Value(value).
		Validate(func(s string) error {
			v, err := strconv.Atoi(s)
			if err != nil {
				return errors.New("enter a whole number")
			}
			if v < joint.AngleMin || v > joint.AngleMax {
				return fmt.Errorf("must be within %d..%d", joint.AngleMin, joint.AngleMax)
			}
			return nil
		})
}

func editSetting(joints *joint.Controller, id int) (joint.Setting, error) {
	cur := joints.Settings()[id]
	minStr, maxStr, homeStr := strconv.Itoa(cur.Min), strconv.Itoa(cur.Max), strconv.Itoa(cur.Home)

	fmt.Println(subHeaderStyle.Render(fmt.Sprintf("━━━ %s ━━━", joint.NameOf(id))))
	form := huh.NewForm(
		huh.NewGroup(
			angleInput("Min angle", &minStr),
			angleInput("Max angle", &maxStr),
			angleInput("Home angle", &homeStr),
		),
	)
	if err := form.Run(); err != nil {
		return cur, err
	}

	// Inputs were validated as numbers.
	s := joint.Setting{}
	s.Min, _ = strconv.Atoi(minStr)
	s.Max, _ = strconv.Atoi(maxStr)
	s.Home, _ = strconv.Atoi(homeStr)
	if s.Min >= s.Max {
		return s, fmt.Errorf("min %d must be below max %d", s.Min, s.Max)
	}
	if s.Home < s.Min || s.Home > s.Max {
		return s, fmt.Errorf("home %d outside %d..%d", s.Home, s.Min, s.Max)
	}
	return s, nil
}

type settingStep struct {
	field string
	set   func(int, int) bool
	value int
	apply func(*joint.Setting, int)
}

// applySetting stores new limits in an order the controller accepts. Every
// intermediate setting must stay valid, so the order depends on where the
// new range lies relative to the current one.
func applySetting(joints *joint.Controller, id int, s joint.Setting) error {
	if !s.Valid() {
		return fmt.Errorf("%s: min %d, max %d, home %d is not a valid setting", joint.NameOf(id), s.Min, s.Max, s.Home)
	}
	minStep := settingStep{"min", joints.SetMinAngle, s.Min, func(c *joint.Setting, v int) { c.Min = v }}
	maxStep := settingStep{"max", joints.SetMaxAngle, s.Max, func(c *joint.Setting, v int) { c.Max = v }}
	homeStep := settingStep{"home", joints.SetHomeAngle, s.Home, func(c *joint.Setting, v int) { c.Home = v }}
	orders := [][]settingStep{
		{homeStep, minStep, maxStep},
		{homeStep, maxStep, minStep},
		{minStep, homeStep, maxStep},
		{maxStep, homeStep, minStep},
	}

	cur := joints.Settings()[id]
	for _, order := range orders {
		if !validOrder(cur, order) {
			continue
		}
		for _, st := range order {
			if !st.set(id, st.value) {
				return fmt.Errorf("%s: %s %d rejected", joint.NameOf(id), st.field, st.value)
			}
		}
		return nil
	}
	return fmt.Errorf("%s: cannot move from %+v to %+v", joint.NameOf(id), cur, s)
}

// validOrder reports whether every step keeps the setting valid.
func validOrder(cur joint.Setting, order []settingStep) bool {
	for _, st := range order {
		st.apply(&cur, st.value)
		if !cur.Valid() {
			return false
		}
	}
	return true
}
