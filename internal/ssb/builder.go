package ssb

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jeongseonghan/nr-sync/internal/nr"
)

// GridConfig describes a synchronization resource grid.
type GridConfig struct {
	NRB            int
	Cell           nr.CellIdentity
	KSSB           int
	Mu             int
	Frequency      float64 // Hz
	SharedSpectrum bool
	PairedSpectrum bool
}

// Validate checks every parameter range.
func (c GridConfig) Validate() error {
	if c.NRB < 1 {
		return fmt.Errorf("%w: N_RB %d < 1", nr.ErrInvalidConfig, c.NRB)
	}
	if err := c.Cell.Validate(); err != nil {
		return err
	}
	if c.KSSB < 0 {
		return fmt.Errorf("%w: k_ssb %d < 0", nr.ErrInvalidConfig, c.KSSB)
	}
	if !nr.ValidNumerology(c.Mu) {
		return fmt.Errorf("%w: numerology %d not in [0,4]", nr.ErrInvalidConfig, c.Mu)
	}
	if c.Frequency < 0 {
		return fmt.Errorf("%w: frequency %g < 0", nr.ErrInvalidConfig, c.Frequency)
	}
	if need := nr.SSBSubcarriers + c.KSSB; c.NRB*nr.SubcarriersPerRB < need {
		return fmt.Errorf("%w: %d subcarriers cannot hold a block at k_ssb %d (need %d)",
			nr.ErrOutOfBounds, c.NRB*nr.SubcarriersPerRB, c.KSSB, need)
	}
	return nil
}

// Dimensions returns (N_SC, N_SYMB_FRAME).
func (c GridConfig) Dimensions() (nSC, nSymb int) {
	return nr.GridDimensions(c.Mu, c.NRB)
}

// SSBIndices returns the first symbol of every transmitted block.
func (c GridConfig) SSBIndices() []int {
	return SSBIndices(CandidateIndices(c.Mu, c.Frequency, c.SharedSpectrum, c.PairedSpectrum), c.Mu, c.SharedSpectrum)
}

// LMax returns the number of transmitted blocks per half frame.
func (c GridConfig) LMax() int {
	return len(c.SSBIndices())
}

// PayloadBits returns the PBCH payload stream length the grid consumes.
func (c GridConfig) PayloadBits() int {
	return c.LMax() * nr.PBCHPayloadLen
}

// BuildGrid synthesizes a full frame grid with one block per transmitted
// candidate. payload supplies 864 bits per block in candidate order; a
// shorter stream is zero-filled and a longer one is truncated. A
// configuration with no candidates yields an empty grid.
func BuildGrid(cfg GridConfig, payload []byte) (*Grid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nSC, nSymb := cfg.Dimensions()
	grid := NewGrid(nSC, nSymb)

	idxs := cfg.SSBIndices()
	lMax := len(idxs)
	bits := make([]byte, lMax*nr.PBCHPayloadLen)
	copy(bits, payload)

	dims := DimensionsFor(cfg.Cell)
	blocks := make([]*Grid, lMax)

	var g errgroup.Group
	for issb := range idxs {
		g.Go(func() error {
			chunk := bits[issb*nr.PBCHPayloadLen : (issb+1)*nr.PBCHPayloadLen]
			b, err := Block(dims, cfg.Cell, lMax, issb, chunk)
			if err != nil {
				return err
			}
			blocks[issb] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build blocks: %w", err)
	}

	for issb, idx := range idxs {
		if err := MapSSB(grid, blocks[issb], cfg.KSSB, idx); err != nil {
			return nil, fmt.Errorf("place block %d: %w", issb, err)
		}
	}
	return grid, nil
}

// GridSource emits a grid one column at a time, wrapping around after the
// last symbol so the output is periodic in the frame length.
type GridSource struct {
	grid *Grid
	idx  int
}

// NewGridSource starts emitting at symbol 0.
func NewGridSource(grid *Grid) *GridSource {
	return &GridSource{grid: grid}
}

// Next returns a copy of the next column, or nil for a grid without
// symbols.
func (s *GridSource) Next() []complex128 {
	if s.grid.NSymb == 0 {
		return nil
	}
	col := make([]complex128, s.grid.NSC)
	copy(col, s.grid.Column(s.idx))
	s.idx = (s.idx + 1) % s.grid.NSymb
	return col
}

// Position returns the index of the column Next will emit.
func (s *GridSource) Position() int { return s.idx }
