package models

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Probe identifies one Neuropixels shank on one recording day.
// The zero value is probe A1.
type Probe struct {
	shank int // 0..5 for A..F
	day   int // 0 or 1 for day 1 or 2
}

const (
	// NumShanks is the number of probes inserted per recording day
	NumShanks = 6

	// NumDays is the number of recording days per mouse
	NumDays = 2

	shankLetters = "ABCDEF"

	// strip x-offset of shank A in the boundary refinement view and the
	// spacing between neighbouring shanks
	baseOffset   = 120
	offsetStride = 226
)

// palette per shank, shared by both days
var shankColors = [NumShanks]string{
	"#ff0000", // red
	"#ffa500", // orange
	"#a52a2a", // brown
	"#008000", // green
	"#0000ff", // blue
	"#800080", // purple
}

// AllProbes returns the fixed batch order A1..F1, A2..F2
func AllProbes() []Probe {
	probes := make([]Probe, 0, NumShanks*NumDays)
	for day := 0; day < NumDays; day++ {
		for shank := 0; shank < NumShanks; shank++ {
			probes = append(probes, Probe{shank: shank, day: day})
		}
	}
	return probes
}

// NewProbe builds a probe from a shank letter and a recording day
func NewProbe(shank byte, day int) (Probe, error) {
	idx := strings.IndexByte(shankLetters, shank)
	if idx < 0 {
		return Probe{}, fmt.Errorf("unknown shank %q", shank)
	}
	if day < 1 || day > NumDays {
		return Probe{}, fmt.Errorf("recording day %d out of range", day)
	}
	return Probe{shank: idx, day: day - 1}, nil
}

// ParseProbe accepts either the long form "Probe A1" or the short form "A1"
func ParseProbe(name string) (Probe, error) {
	short := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "Probe"))
	if len(short) != 2 || short[1] < '1' || short[1] > '9' {
		return Probe{}, fmt.Errorf("invalid probe name %q", name)
	}
	p, err := NewProbe(short[0], int(short[1]-'0'))
	if err != nil {
		return Probe{}, fmt.Errorf("invalid probe name %q: %w", name, err)
	}
	return p, nil
}

// Name is the label used by the annotation tool, e.g. "Probe A1"
func (p Probe) Name() string {
	return "Probe " + p.Short()
}

// Short is the compact label, e.g. "A1"
func (p Probe) Short() string {
	return fmt.Sprintf("%c%d", shankLetters[p.shank], p.day+1)
}

func (p Probe) String() string { return p.Name() }

// Index is the shank position 0..5, identical for both days
func (p Probe) Index() int { return p.shank }

// Ordinal is the position of the probe in AllProbes
func (p Probe) Ordinal() int { return p.day*NumShanks + p.shank }

// Day is the recording day, 1 or 2
func (p Probe) Day() int { return p.day + 1 }

// Offset is the horizontal position of this shank's strip in the boundary
// refinement view
func (p Probe) Offset() int {
	return baseOffset + offsetStride*p.shank
}

// Color returns the display color of the probe's shank
func (p Probe) Color() color.Color {
	c, err := colorful.Hex(shankColors[p.shank])
	if err != nil {
		return color.Black
	}
	return c
}
