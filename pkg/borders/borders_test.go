package borders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// names maps IDs to acronyms; unknown IDs report "none"
type names map[int]string

func (n names) Acronym(id int) string {
	if a, ok := n[id]; ok {
		return a
	}
	return "none"
}

func TestFindBordersKeepsGapOfThree(t *testing.T) {
	ids := []int{1, 1, 1, 2, 2, 2, 3, 3, 3, 3}

	// candidates at 2 and 5; the gap between them is exactly 3, which is kept
	assert.Equal(t, []int{2, 5}, FindBorders(ids, names{}))
}

func TestFinderStrictGapMatchesRefinementTool(t *testing.T) {
	ids := []int{1, 1, 1, 2, 2, 2, 3, 3, 3, 3}
	assert.Equal(t, []int{2}, Finder{MinGap: 4}.Find(ids, names{}))
}

func TestFindBordersDropsShortSegments(t *testing.T) {
	ids := []int{1, 1, 1, 1, 2, 2, 3, 3, 3, 3, 3}

	// candidates 3 and 5: gap 2 drops the second boundary
	assert.Equal(t, []int{3}, FindBorders(ids, names{}))
}

func TestFindBordersGapIsToPreviousCandidate(t *testing.T) {
	ids := []int{1, 1, 2, 3, 3, 3, 3, 4}

	// candidates 1, 2, 6: gaps 5 (first), 1, 4
	assert.Equal(t, []int{1, 6}, FindBorders(ids, names{}))
}

func TestFindBordersLayer6bIsExempt(t *testing.T) {
	ids := []int{10, 10, 10, 10, 11, 12, 12, 12, 12}
	tree := names{10: "VISp6a", 11: "VISp6b", 12: "scwm"}

	// candidates 3 and 4; the structure at index 4 is layer 6b
	assert.Equal(t, []int{3, 4}, FindBorders(ids, tree))

	// without the exemption the thin layer is lost
	f := Finder{MinGap: 3}
	assert.Equal(t, []int{3}, f.Find(ids, tree))
}

func TestFindBordersEdgeCases(t *testing.T) {
	assert.Empty(t, FindBorders(nil, names{}))
	assert.Empty(t, FindBorders([]int{4}, names{}))
	assert.Empty(t, FindBorders([]int{4, 4, 4}, names{}))
	assert.Equal(t, []int{0}, FindBorders([]int{-1, 7}, nil))
}

func TestFindBordersOutputIsIncreasingAndValid(t *testing.T) {
	ids := []int{1, 2, 1, 2, 2, 2, 2, 5, 5, 6, 6, 6, 6, 6, 7}
	out := FindBorders(ids, names{})
	for i, b := range out {
		assert.True(t, b >= 0 && b < len(ids))
		if i > 0 {
			assert.Greater(t, b, out[i-1])
		}
	}
	assert.Equal(t, out, FindBorders(ids, names{}))
}

func TestDescribe(t *testing.T) {
	ids := []int{1, 1, 1, 2, 2, 2, 3, 3, 3, 3}
	tree := names{1: "VISp2/3", 2: "VISp4"}

	got := Describe(ids, FindBorders(ids, tree), tree)
	assert.Equal(t, []Border{
		{Index: 2, StructureID: 1, Acronym: "VISp2/3", Label: "2/3"},
		{Index: 5, StructureID: 2, Acronym: "VISp4", Label: "4"},
	}, got)
}

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"VISp2/3":  "2/3",
		"VISp6b":   "6",
		"CA1":      "CA1",
		"DG-mo":    "DG",
		"LGd-co":   "LGd",
		"SSp-bfd4": "4",
		"none":     "none",
		"root":     "root",
	}
	for in, want := range cases {
		assert.Equal(t, want, DisplayName(in), in)
	}
}
