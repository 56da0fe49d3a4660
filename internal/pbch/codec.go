// Package pbch scrambles and QPSK-modulates the 864-bit PBCH payload of an
// SS/PBCH block (TS 38.211 7.3.3.1) and inverts it on receive.
package pbch

import (
	"fmt"

	"github.com/jeongseonghan/nr-sync/internal/modem"
	"github.com/jeongseonghan/nr-sync/internal/nr"
	"github.com/jeongseonghan/nr-sync/internal/sequence"
)

// ScramblingOffset returns v, the index of the 864-bit window of the
// scrambling sequence used by block issb.
func ScramblingOffset(issb, lMax int) int {
	if lMax == 4 {
		return issb % 4
	}
	return issb % 8
}

// scrambler returns the 864 scrambling bits for block issb.
func scrambler(lMax, cellID, issb int) ([]byte, error) {
	if cellID < 0 || cellID >= nr.NumNID1*nr.NumNID2 {
		return nil, fmt.Errorf("%w: cell ID %d", nr.ErrInvalidConfig, cellID)
	}
	if issb < 0 {
		return nil, fmt.Errorf("%w: block index %d", nr.ErrInvalidConfig, issb)
	}
	v := ScramblingOffset(issb, lMax)
	c, err := sequence.PRSG((1+v)*nr.PBCHPayloadLen, uint32(cellID))
	if err != nil {
		return nil, err
	}
	return c[v*nr.PBCHPayloadLen:], nil
}

func xor(bits, c []byte) []byte {
	out := make([]byte, len(bits))
	for i := range bits {
		out[i] = (bits[i] ^ c[i]) & 1
	}
	return out
}

// Encode scrambles payload (864 bits, one per byte) and maps it to 432
// QPSK symbols.
func Encode(payload []byte, lMax, cellID, issb int) ([]complex128, error) {
	if len(payload) != nr.PBCHPayloadLen {
		return nil, fmt.Errorf("%w: PBCH payload must be %d bits, got %d", nr.ErrInvalidLength, nr.PBCHPayloadLen, len(payload))
	}
	c, err := scrambler(lMax, cellID, issb)
	if err != nil {
		return nil, fmt.Errorf("generate scrambling sequence: %w", err)
	}
	return modem.Symbolize(xor(payload, c))
}

// Decode demodulates 432 PBCH symbols and removes the scrambling applied
// by Encode with the same parameters.
func Decode(symbols []complex128, lMax, cellID, issb int) ([]byte, error) {
	if len(symbols) != nr.PBCHSymbols {
		return nil, fmt.Errorf("%w: PBCH needs %d symbols, got %d", nr.ErrInvalidLength, nr.PBCHSymbols, len(symbols))
	}
	c, err := scrambler(lMax, cellID, issb)
	if err != nil {
		return nil, fmt.Errorf("generate scrambling sequence: %w", err)
	}
	return xor(modem.Desymbolize(symbols), c), nil
}
