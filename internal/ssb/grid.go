// Package ssb maps PSS, SSS, PBCH and DM-RS into SS/PBCH blocks, places
// blocks into a frame resource grid, and computes the candidate block
// positions of TS 38.213 4.1.
package ssb

import (
	"fmt"

	"github.com/jeongseonghan/nr-sync/internal/nr"
)

// Grid is a complex time-frequency grid of NSC subcarriers by NSymb OFDM
// symbols. Data is stored column-major: all subcarriers of symbol 0, then
// symbol 1, and so on. This is also the serialization order at every
// stream boundary.
type Grid struct {
	NSC   int
	NSymb int
	Data  []complex128
}

// NewGrid allocates a zeroed grid.
func NewGrid(nSC, nSymb int) *Grid {
	return &Grid{NSC: nSC, NSymb: nSymb, Data: make([]complex128, nSC*nSymb)}
}

// GridFromData wraps column-major data. The slice is not copied.
func GridFromData(nSC, nSymb int, data []complex128) (*Grid, error) {
	if len(data) != nSC*nSymb {
		return nil, fmt.Errorf("%w: %d values for a %dx%d grid", nr.ErrInvalidLength, len(data), nSC, nSymb)
	}
	return &Grid{NSC: nSC, NSymb: nSymb, Data: data}, nil
}

// NewBlock allocates a zeroed 240x4 SS/PBCH block.
func NewBlock() *Grid {
	return NewGrid(nr.SSBSubcarriers, nr.SSBSymbols)
}

// At returns the value at subcarrier k, symbol l.
func (g *Grid) At(k, l int) complex128 { return g.Data[l*g.NSC+k] }

// Set stores v at subcarrier k, symbol l.
func (g *Grid) Set(k, l int, v complex128) { g.Data[l*g.NSC+k] = v }

// Column returns symbol l as a slice aliasing the grid.
func (g *Grid) Column(l int) []complex128 {
	return g.Data[l*g.NSC : (l+1)*g.NSC]
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	c := NewGrid(g.NSC, g.NSymb)
	copy(c.Data, g.Data)
	return c
}

// Add accumulates other into g element-wise.
func (g *Grid) Add(other *Grid) error {
	if other.NSC != g.NSC || other.NSymb != g.NSymb {
		return fmt.Errorf("%w: adding %dx%d grid to %dx%d", nr.ErrInvalidLength, other.NSC, other.NSymb, g.NSC, g.NSymb)
	}
	for i, v := range other.Data {
		g.Data[i] += v
	}
	return nil
}

func (g *Grid) isBlock() bool {
	return g.NSC == nr.SSBSubcarriers && g.NSymb == nr.SSBSymbols
}

// MapSSB writes a 240x4 block into grid with its first subcarrier at kOff
// and first symbol at lOff.
func MapSSB(grid, block *Grid, kOff, lOff int) error {
	if !block.isBlock() {
		return fmt.Errorf("%w: block is %dx%d", nr.ErrInvalidLength, block.NSC, block.NSymb)
	}
	if err := checkPlacement(grid, kOff, lOff); err != nil {
		return err
	}
	for l := 0; l < nr.SSBSymbols; l++ {
		dst := grid.Column(lOff + l)[kOff : kOff+nr.SSBSubcarriers]
		copy(dst, block.Column(l))
	}
	return nil
}

// ExtractSSB copies the 240x4 block at (kOff, lOff) out of grid.
func ExtractSSB(grid *Grid, kOff, lOff int) (*Grid, error) {
	if err := checkPlacement(grid, kOff, lOff); err != nil {
		return nil, err
	}
	block := NewBlock()
	for l := 0; l < nr.SSBSymbols; l++ {
		copy(block.Column(l), grid.Column(lOff + l)[kOff:kOff+nr.SSBSubcarriers])
	}
	return block, nil
}

func checkPlacement(grid *Grid, kOff, lOff int) error {
	if kOff < 0 || lOff < 0 || kOff+nr.SSBSubcarriers > grid.NSC || lOff+nr.SSBSymbols > grid.NSymb {
		return fmt.Errorf("%w: block at (%d, %d) exceeds %dx%d grid", nr.ErrOutOfBounds, kOff, lOff, grid.NSC, grid.NSymb)
	}
	return nil
}
