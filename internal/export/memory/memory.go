// Package memory holds an in-memory template used by exporter tests.
package memory

import (
	"encoding/json"
	"fmt"
)

// Grid records every cell write keyed by "sheet!cell".
type Grid struct {
	cells map[string]any
}

func New() *Grid {
	return &Grid{cells: make(map[string]any)}
}

func (g *Grid) SetString(sheet, cell, value string) error {
	g.cells[key(sheet, cell)] = value
	return nil
}

func (g *Grid) SetNumber(sheet, cell string, value float64) error {
	g.cells[key(sheet, cell)] = value
	return nil
}

// Bytes serializes the grid so callers exercising the full export path
// get a non-empty payload.
func (g *Grid) Bytes() ([]byte, error) {
	return json.Marshal(g.cells)
}

// Cell returns the recorded value for sheet!cell, nil if never written.
func (g *Grid) Cell(sheet, cell string) any {
	return g.cells[key(sheet, cell)]
}

// Len is the number of cells written.
func (g *Grid) Len() int {
	return len(g.cells)
}

func key(sheet, cell string) string {
	return fmt.Sprintf("%s!%s", sheet, cell)
}
