// Package acquisition performs blind cell search on frequency-domain OFDM
// symbols: PSS detection across sector and subcarrier hypotheses, a
// streaming detector that collects the four symbols of a detected SS/PBCH
// block, SSS decoding and PBCH descrambling.
package acquisition

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/jeongseonghan/nr-sync/internal/nr"
	"github.com/jeongseonghan/nr-sync/internal/pbch"
	"github.com/jeongseonghan/nr-sync/internal/sequence"
)

// Peak is the strongest PSS hypothesis in one OFDM symbol.
type Peak struct {
	NID2        int
	Shift       int     // subcarrier where the PSS starts
	Correlation float64 // |sum symbol[Shift+n] * pss[n]|
}

// KSSB returns the subcarrier offset of the block the peak belongs to.
func (p Peak) KSSB() int { return p.Shift - nr.SyncSeqBase }

// correlate returns |sum_n a[j+n]*ref[n]| for every full-overlap shift j.
func correlate(a []complex128, ref []float64) []float64 {
	out := make([]float64, len(a)-len(ref)+1)
	for j := range out {
		var sum complex128
		for n, r := range ref {
			sum += a[j+n] * complex(r, 0)
		}
		out[j] = cmplx.Abs(sum)
	}
	return out
}

// CorrelatePSS correlates symbol against the three PSS hypotheses at every
// subcarrier shift and returns the maximum. Ties go to the lowest NID2,
// then the lowest shift.
func CorrelatePSS(symbol []complex128) (Peak, error) {
	if len(symbol) < nr.SyncSeqLen {
		return Peak{}, fmt.Errorf("%w: symbol of %d subcarriers is shorter than the PSS", nr.ErrInvalidLength, len(symbol))
	}

	shifts := len(symbol) - nr.SyncSeqLen + 1
	corr := make([]float64, nr.NumNID2*shifts)

	var wg sync.WaitGroup
	for nid2 := 0; nid2 < nr.NumNID2; nid2++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			copy(corr[nid2*shifts:], correlate(symbol, sequence.PSSReference(nid2)))
		}()
	}
	wg.Wait()

	best := floats.MaxIdx(corr)
	return Peak{NID2: best / shifts, Shift: best % shifts, Correlation: corr[best]}, nil
}

// CorrelateSSS returns |sum sss[n] * d[n]| for every N_ID1 hypothesis d
// within sector nid2.
func CorrelateSSS(sss []complex128, nid2 int) ([]float64, error) {
	if len(sss) != nr.SyncSeqLen {
		return nil, fmt.Errorf("%w: SSS must be %d symbols, got %d", nr.ErrInvalidLength, nr.SyncSeqLen, len(sss))
	}
	if nid2 < 0 || nid2 >= nr.NumNID2 {
		return nil, fmt.Errorf("%w: N_ID2 %d", nr.ErrInvalidConfig, nid2)
	}

	corr := make([]float64, nr.NumNID1)
	workers := runtime.GOMAXPROCS(0)
	chunk := (nr.NumNID1 + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < nr.NumNID1; start += chunk {
		end := min(start+chunk, nr.NumNID1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for nid1 := start; nid1 < end; nid1++ {
				corr[nid1] = correlate(sss, sequence.SSSReference(nid1, nid2))[0]
			}
		}()
	}
	wg.Wait()
	return corr, nil
}

// DecodeSSS returns the N_ID1 whose SSS correlates best with sss, with the
// lowest N_ID1 winning ties.
func DecodeSSS(sss []complex128, nid2 int) (int, error) {
	corr, err := CorrelateSSS(sss, nid2)
	if err != nil {
		return 0, err
	}
	return floats.MaxIdx(corr), nil
}

// DecodePBCH descrambles the 432 PBCH symbols of block issb into 864 bits.
func DecodePBCH(symbols []complex128, lMax, cellID, issb int) ([]byte, error) {
	return pbch.Decode(symbols, lMax, cellID, issb)
}
