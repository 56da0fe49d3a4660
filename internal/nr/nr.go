// Package nr holds the vocabulary shared by the 5G-NR synchronization
// components: cell identity, SSB geometry, numerology helpers and the
// error taxonomy.
package nr

import (
	"errors"
	"fmt"
)

// Errors returned by the core. Callers match them with errors.Is.
var (
	ErrInvalidLength = errors.New("invalid length")
	ErrOutOfBounds   = errors.New("out of bounds")
	ErrInvalidConfig = errors.New("invalid config")
)

// SS/PBCH block geometry (TS 38.211 7.4.3.1).
const (
	SSBSubcarriers = 240
	SSBSymbols     = 4
	SSBSize        = SSBSubcarriers * SSBSymbols

	SyncSeqLen  = 127 // PSS and SSS length
	SyncSeqBase = 56  // first PSS/SSS subcarrier within the block

	PBCHSymbols    = 432
	DMRSSymbols    = 144
	PBCHPayloadLen = 864 // scrambled PBCH bits per block

	SubcarriersPerRB = 12
	SymbolsPerSlot   = 14

	NumNID1 = 336
	NumNID2 = 3
)

// CellIdentity is a physical cell identity split into group and sector.
type CellIdentity struct {
	NID1 int // cell ID group, [0,335]
	NID2 int // cell ID sector, [0,2]
}

// NewCellIdentity validates and returns a cell identity.
func NewCellIdentity(nid1, nid2 int) (CellIdentity, error) {
	c := CellIdentity{NID1: nid1, NID2: nid2}
	if err := c.Validate(); err != nil {
		return CellIdentity{}, err
	}
	return c, nil
}

// Validate checks both components are in range.
func (c CellIdentity) Validate() error {
	if c.NID1 < 0 || c.NID1 >= NumNID1 {
		return fmt.Errorf("%w: N_ID1 %d not in [0,%d]", ErrInvalidConfig, c.NID1, NumNID1-1)
	}
	if c.NID2 < 0 || c.NID2 >= NumNID2 {
		return fmt.Errorf("%w: N_ID2 %d not in [0,%d]", ErrInvalidConfig, c.NID2, NumNID2-1)
	}
	return nil
}

// CellID returns N_ID_Cell = 3*N_ID1 + N_ID2.
func (c CellIdentity) CellID() int {
	return 3*c.NID1 + c.NID2
}

// Nu returns the DM-RS comb phase N_ID_Cell mod 4.
func (c CellIdentity) Nu() int {
	return c.CellID() % 4
}

// String returns the identity in "nid1/nid2 (cell)" form.
func (c CellIdentity) String() string {
	return fmt.Sprintf("%d/%d (cell %d)", c.NID1, c.NID2, c.CellID())
}

// GridDimensions returns the number of subcarriers and OFDM symbols per
// frame for numerology mu and nRB resource blocks (TS 38.211 Table 4.3.2-1).
func GridDimensions(mu, nRB int) (nSC, nSymb int) {
	slotsPerFrame := (1 << mu) * 10
	return nRB * SubcarriersPerRB, SymbolsPerSlot * slotsPerFrame
}

// SubcarrierSpacing returns 15 kHz * 2^mu in Hz.
func SubcarrierSpacing(mu int) float64 {
	return float64(int(15e3) << mu)
}

// ValidNumerology reports whether mu is one of 0..4.
func ValidNumerology(mu int) bool {
	return mu >= 0 && mu <= 4
}

// CPLength returns the cyclic prefix length of symbol l in units of the
// basic time unit with kappa = 1.
func CPLength(mu, l int, extended bool) float64 {
	scale := 1.0 / float64(int(1)<<mu)
	if extended {
		return 512 * scale
	}
	if l == 0 || l == 7*(1<<mu) {
		return 144*scale + 16
	}
	return 144 * scale
}

// Mod returns x mod m in [0,m).
func Mod(x, m int) int {
	r := x % m
	if r < 0 {
		r += m
	}
	return r
}
