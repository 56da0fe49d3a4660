package ssb

import (
	"fmt"
	"sync"

	"github.com/jeongseonghan/nr-sync/internal/nr"
)

// Dimensions describes one SS/PBCH block: its DM-RS comb phase and its
// position within the resource grid.
type Dimensions struct {
	Nu      int // N_ID_Cell mod 4
	KOffset int // first subcarrier in the grid
	LOffset int // first OFDM symbol in the grid
}

// DimensionsFor returns block dimensions for cell at the grid origin.
func DimensionsFor(cell nr.CellIdentity) Dimensions {
	return Dimensions{Nu: cell.Nu()}
}

// layout holds flattened block positions (l*240 + k) for every channel in
// the scan order the mapping uses. Unmapping reads the same tables, so
// round trips preserve order by construction.
type layout struct {
	pss  []int
	sss  []int
	pbch [4][]int
	dmrs [4][]int
}

var blockLayout = sync.OnceValue(func() layout {
	var lay layout
	for k := nr.SyncSeqBase; k < nr.SyncSeqBase+nr.SyncSeqLen; k++ {
		lay.pss = append(lay.pss, k)
		lay.sss = append(lay.sss, 2*nr.SSBSubcarriers+k)
	}

	for nu := 0; nu < 4; nu++ {
		pbch := make([]int, 0, nr.PBCHSymbols)
		dmrs := make([]int, 0, nr.DMRSSymbols)
		for l := 1; l < nr.SSBSymbols; l++ {
			for k := 0; k < nr.SSBSubcarriers; k++ {
				// symbol 2 carries SSS in [48,192)
				if l == 2 && k >= 48 && k < 192 {
					continue
				}
				if k%4 == nu {
					dmrs = append(dmrs, l*nr.SSBSubcarriers+k)
				} else {
					pbch = append(pbch, l*nr.SSBSubcarriers+k)
				}
			}
		}
		lay.pbch[nu] = pbch
		lay.dmrs[nu] = dmrs
	}
	return lay
})

// DMRSSubcarriers returns, for symbol l in 1..3, the block subcarriers that
// carry DM-RS and the matching index range into the DM-RS stream.
func DMRSSubcarriers(nu, l int) (subcarriers []int, first int) {
	first = -1
	for i, pos := range blockLayout().dmrs[nr.Mod(nu, 4)] {
		if pos/nr.SSBSubcarriers != l {
			continue
		}
		if first < 0 {
			first = i
		}
		subcarriers = append(subcarriers, pos%nr.SSBSubcarriers)
	}
	return subcarriers, first
}

// PBCHSubcarriers is DMRSSubcarriers for the PBCH data stream.
func PBCHSubcarriers(nu, l int) (subcarriers []int, first int) {
	first = -1
	for i, pos := range blockLayout().pbch[nr.Mod(nu, 4)] {
		if pos/nr.SSBSubcarriers != l {
			continue
		}
		if first < 0 {
			first = i
		}
		subcarriers = append(subcarriers, pos%nr.SSBSubcarriers)
	}
	return subcarriers, first
}

func place(block *Grid, positions []int, data []complex128) {
	for i, pos := range positions {
		block.Data[pos] = data[i]
	}
}

func gather(block *Grid, positions []int) []complex128 {
	out := make([]complex128, len(positions))
	for i, pos := range positions {
		out[i] = block.Data[pos]
	}
	return out
}

func requireLen(name string, data []complex128, want int) error {
	if len(data) != want {
		return fmt.Errorf("%w: %s data must be %d symbols, got %d", nr.ErrInvalidLength, name, want, len(data))
	}
	return nil
}

func requireBlock(block *Grid) error {
	if !block.isBlock() {
		return fmt.Errorf("%w: block is %dx%d, want %dx%d", nr.ErrInvalidLength,
			block.NSC, block.NSymb, nr.SSBSubcarriers, nr.SSBSymbols)
	}
	return nil
}

// MapPSS places the 127 PSS values on subcarriers [56,183) of symbol 0
// (TS 38.211 7.4.3.1.1).
func MapPSS(data []complex128, dims Dimensions) (*Grid, error) {
	if err := requireLen("PSS", data, nr.SyncSeqLen); err != nil {
		return nil, err
	}
	block := NewBlock()
	place(block, blockLayout().pss, data)
	return block, nil
}

// MapSSS places the 127 SSS values on subcarriers [56,183) of symbol 2
// (TS 38.211 7.4.3.1.2).
func MapSSS(data []complex128, dims Dimensions) (*Grid, error) {
	if err := requireLen("SSS", data, nr.SyncSeqLen); err != nil {
		return nil, err
	}
	block := NewBlock()
	place(block, blockLayout().sss, data)
	return block, nil
}

// MapPBCH places PBCH and DM-RS on symbols 1..3, skipping the SSS band of
// symbol 2. A subcarrier carries DM-RS iff k mod 4 == nu
// (TS 38.211 7.4.3.1.3).
func MapPBCH(pbch, dmrs []complex128, dims Dimensions) (*Grid, error) {
	if err := requireLen("PBCH", pbch, nr.PBCHSymbols); err != nil {
		return nil, err
	}
	if err := requireLen("DM-RS", dmrs, nr.DMRSSymbols); err != nil {
		return nil, err
	}
	lay := blockLayout()
	nu := nr.Mod(dims.Nu, 4)

	block := NewBlock()
	place(block, lay.pbch[nu], pbch)
	place(block, lay.dmrs[nu], dmrs)
	return block, nil
}

// UnmapPSS extracts the 127 PSS values from a block.
func UnmapPSS(block *Grid) ([]complex128, error) {
	if err := requireBlock(block); err != nil {
		return nil, err
	}
	return gather(block, blockLayout().pss), nil
}

// UnmapSSS extracts the 127 SSS values from a block.
func UnmapSSS(block *Grid) ([]complex128, error) {
	if err := requireBlock(block); err != nil {
		return nil, err
	}
	return gather(block, blockLayout().sss), nil
}

// UnmapPBCH extracts the 432 PBCH and 144 DM-RS values from a block in
// mapping order.
func UnmapPBCH(block *Grid, dims Dimensions) (pbch, dmrs []complex128, err error) {
	if err := requireBlock(block); err != nil {
		return nil, nil, err
	}
	lay := blockLayout()
	nu := nr.Mod(dims.Nu, 4)
	return gather(block, lay.pbch[nu]), gather(block, lay.dmrs[nu]), nil
}
