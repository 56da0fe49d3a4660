package ssb

import (
	"fmt"

	"github.com/jeongseonghan/nr-sync/internal/nr"
	"github.com/jeongseonghan/nr-sync/internal/pbch"
	"github.com/jeongseonghan/nr-sync/internal/sequence"
)

// Block synthesizes one SS/PBCH block for candidate issb carrying the 864
// PBCH payload bits. PSS, SSS and PBCH/DM-RS occupy disjoint resource
// elements, so the block is their sum.
func Block(dims Dimensions, cell nr.CellIdentity, lMax, issb int, payload []byte) (*Grid, error) {
	if err := cell.Validate(); err != nil {
		return nil, err
	}
	cellID := cell.CellID()

	pss, err := MapPSS(sequence.ToComplex(sequence.PSS(cell.NID2)), dims)
	if err != nil {
		return nil, err
	}
	sss, err := MapSSS(sequence.ToComplex(sequence.SSS(cell.NID1, cell.NID2)), dims)
	if err != nil {
		return nil, err
	}

	data, err := pbch.Encode(payload, lMax, cellID, issb)
	if err != nil {
		return nil, fmt.Errorf("encode pbch for block %d: %w", issb, err)
	}
	dmrs := sequence.DMRS(issb, cellID, lMax, 0)
	pbchBlock, err := MapPBCH(data, dmrs, dims)
	if err != nil {
		return nil, err
	}

	block := NewBlock()
	for _, part := range []*Grid{pss, sss, pbchBlock} {
		if err := block.Add(part); err != nil {
			return nil, err
		}
	}
	return block, nil
}
