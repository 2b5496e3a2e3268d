package output

import "github.com/fatih/color"

type palette struct {
	header  *color.Color
	title   *color.Color
	dim     *color.Color
	value   *color.Color
	good    *color.Color
	warn    *color.Color
	bad     *color.Color
	latency *color.Color
	stage   *color.Color
}

func newPalette(enabled bool) *palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}

	return &palette{
		header:  mk(color.FgCyan),
		title:   mk(color.Bold),
		dim:     mk(color.Faint),
		value:   mk(color.FgCyan),
		good:    mk(color.FgGreen),
		warn:    mk(color.FgYellow),
		bad:     mk(color.FgRed),
		latency: mk(color.FgBlue),
		stage:   mk(color.FgMagenta),
	}
}

// rate picks green, yellow or red for a ratio where higher is better.
func (p *palette) rate(r, warnBelow, badBelow float64) *color.Color {
	switch {
	case r < badBelow:
		return p.bad
	case r < warnBelow:
		return p.warn
	default:
		return p.good
	}
}

func (p *palette) mark(passed bool) string {
	if passed {
		return p.good.Sprint("✓")
	}
	return p.bad.Sprint("✗")
}
