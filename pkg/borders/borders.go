// Package borders finds the points along a probe track where the assigned
// CCF structure changes.
package borders

import (
	"regexp"
	"strings"
)

const (
	// DefaultMinGap is the smallest accepted distance, in track samples,
	// between a boundary and the previous detected boundary
	DefaultMinGap = 3

	// DefaultExemptLabel marks layer 6b, which is thin enough to produce
	// boundaries closer than DefaultMinGap
	DefaultExemptLabel = "6b"

	// firstGap is assigned to the first boundary so it is always kept
	firstGap = 5
)

// Namer resolves a structure ID to its acronym
type Namer interface {
	Acronym(id int) string
}

// Finder filters raw structure changes into anatomical boundaries
type Finder struct {
	// MinGap is the minimum distance to the previous detected boundary.
	// A gap equal to MinGap is kept, so the default of 3 keeps one more
	// boundary than the refinement tool's strict "> 3" check; MinGap 4
	// reproduces that tool.
	MinGap int

	// ExemptLabel, when contained in the structure acronym at a boundary,
	// keeps the boundary regardless of MinGap
	ExemptLabel string
}

// DefaultFinder returns the filter used by the registration pipeline
func DefaultFinder() Finder {
	return Finder{MinGap: DefaultMinGap, ExemptLabel: DefaultExemptLabel}
}

// FindBorders returns boundary indices using DefaultFinder
func FindBorders(ids []int, names Namer) []int {
	return DefaultFinder().Find(ids, names)
}

// Find returns the indices i where ids[i] != ids[i+1], dropping boundaries
// closer than MinGap to the previous detected one unless the structure at
// the boundary carries ExemptLabel. Indices are strictly increasing.
func (f Finder) Find(ids []int, names Namer) []int {
	var candidates []int
	for i := 0; i+1 < len(ids); i++ {
		if ids[i] != ids[i+1] {
			candidates = append(candidates, i)
		}
	}

	kept := make([]int, 0, len(candidates))
	for k, b := range candidates {
		gap := firstGap
		if k > 0 {
			gap = b - candidates[k-1]
		}
		if gap >= f.MinGap || f.exempt(ids[b], names) {
			kept = append(kept, b)
		}
	}
	return kept
}

func (f Finder) exempt(id int, names Namer) bool {
	if f.ExemptLabel == "" || names == nil {
		return false
	}
	return strings.Contains(names.Acronym(id), f.ExemptLabel)
}

// Border describes one kept boundary along a track
type Border struct {
	// Index is the last sample of the structure above the boundary
	Index       int
	StructureID int
	Acronym     string
	Label       string
}

// Describe attaches structure names to boundary indices
func Describe(ids []int, indices []int, names Namer) []Border {
	out := make([]Border, len(indices))
	for i, idx := range indices {
		acronym := names.Acronym(ids[idx])
		out[i] = Border{
			Index:       idx,
			StructureID: ids[idx],
			Acronym:     acronym,
			Label:       DisplayName(acronym),
		}
	}
	return out
}

var digits = regexp.MustCompile(`\d+`)

// DisplayName shortens an acronym for boundary markers: cortical layer
// acronyms collapse to their layer numbers ("VISp2/3" -> "2/3") except in
// the CA fields, and anything after the first '-' is dropped.
func DisplayName(acronym string) string {
	name := acronym
	if nums := digits.FindAllString(name, -1); len(nums) > 0 && !strings.HasPrefix(name, "CA") {
		name = strings.Join(nums, "/")
	}
	return strings.SplitN(name, "-", 2)[0]
}
