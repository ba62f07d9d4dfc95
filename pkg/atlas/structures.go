// Package atlas maps warped template coordinates into the Common Coordinate
// Framework and looks up the anatomical structure at each point.
package atlas

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// UnknownAcronym is reported for structure IDs missing from the tree
const UnknownAcronym = "none"

// ErrNoAcronymColumn is returned when a structure tree CSV lacks an acronym column
var ErrNoAcronymColumn = errors.New("structure tree has no acronym column")

// StructureTree maps a structure ID, which is its 0-based row in the tree
// table, to the structure's acronym
type StructureTree struct {
	acronyms []string
}

// NewStructureTree builds a tree from acronyms listed in ID order
func NewStructureTree(acronyms []string) *StructureTree {
	return &StructureTree{acronyms: append([]string(nil), acronyms...)}
}

// LoadStructureTree reads the CCF structure tree CSV
func LoadStructureTree(path string) (*StructureTree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open structure tree: %w", err)
	}
	defer f.Close()

	tree, err := ReadStructureTree(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read structure tree %s: %w", path, err)
	}
	return tree, nil
}

// ReadStructureTree parses a structure tree table with a header row. Only
// the acronym column is used; row order defines the structure IDs.
func ReadStructureTree(r io.Reader) (*StructureTree, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, err
	}
	col := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "acronym") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, ErrNoAcronymColumn
	}

	tree := &StructureTree{}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		acronym := ""
		if col < len(rec) {
			acronym = rec[col]
		}
		tree.acronyms = append(tree.acronyms, acronym)
	}
	return tree, nil
}

// Len returns the number of structures in the tree
func (t *StructureTree) Len() int { return len(t.acronyms) }

// Lookup returns the acronym for id and whether it exists
func (t *StructureTree) Lookup(id int) (string, bool) {
	if t == nil || id < 0 || id >= len(t.acronyms) {
		return "", false
	}
	return t.acronyms[id], true
}

// Acronym returns the acronym for id, or UnknownAcronym when the tree has
// no such entry
func (t *StructureTree) Acronym(id int) string {
	if a, ok := t.Lookup(id); ok {
		return a
	}
	return UnknownAcronym
}
