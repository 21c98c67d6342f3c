/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package graffiti

const gridCells = GridResolution * GridResolution

// Grid is a square raster of team ids. Every peer keeps its own; it never
// leaves the process, so it always encodes as JSON null.
type Grid struct {
	cells [gridCells]byte
}

func NewGrid() *Grid {
	g := &Grid{}
	g.Reset()
	return g
}

func (g *Grid) Reset() {
	for i := range g.cells {
		g.cells[i] = Unowned
	}
}

func (g *Grid) Clone() *Grid {
	c := *g
	return &c
}

func inBounds(x, y int) bool {
	return x >= 0 && x < GridResolution && y >= 0 && y < GridResolution
}

// Owner reports the team id painted at (x, y), or Unowned.
func (g *Grid) Owner(x, y int) byte {
	if !inBounds(x, y) {
		return Unowned
	}
	return g.cells[y*GridResolution+x]
}

// Set paints (x, y) for team. Out-of-range cells and team ids are ignored.
func (g *Grid) Set(x, y, team int) bool {
	if !inBounds(x, y) || team < 0 || team >= TeamCapacity {
		return false
	}
	g.cells[y*GridResolution+x] = byte(team)
	return true
}

// Counts scans the whole grid once and returns the number of cells each team
// owns. Unowned cells and ids outside the team range are skipped.
func (g *Grid) Counts() [TeamCapacity]int {
	var counts [TeamCapacity]int
	for _, c := range g.cells {
		if int(c) < TeamCapacity {
			counts[c]++
		}
	}
	return counts
}

func (g *Grid) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// UnmarshalJSON discards whatever a remote peer put in the grid field.
func (g *Grid) UnmarshalJSON([]byte) error {
	return nil
}
