package sequence

import (
	"math"

	"github.com/jeongseonghan/nr-sync/internal/nr"
)

// DMRSBlockIndex returns the i_ssb' term of the DM-RS initializer.
// For L_max == 4 the half-frame number contributes 4*nHF.
func DMRSBlockIndex(issb, lMax, nHF int) int {
	if lMax == 4 {
		return issb%4 + 4*nHF
	}
	return issb % 8
}

// DMRSInit returns c_init for the PBCH DM-RS (TS 38.211 7.4.1.4.1).
func DMRSInit(issb, cellID, lMax, nHF int) uint32 {
	i := DMRSBlockIndex(issb, lMax, nHF)
	return uint32((1<<11)*(i+1)*(cellID/4+1) + (1<<6)*(i+1) + cellID%4)
}

// DMRS returns the 144 QPSK reference symbols for SS/PBCH block issb.
func DMRS(issb, cellID, lMax, nHF int) []complex128 {
	c, _ := PRSG(2*nr.DMRSSymbols+1, DMRSInit(issb, cellID, lMax, nHF))

	r := make([]complex128, nr.DMRSSymbols)
	for m := range r {
		r[m] = complex(bipolar(c[2*m]), bipolar(c[2*m+1])) / math.Sqrt2
	}
	return r
}
