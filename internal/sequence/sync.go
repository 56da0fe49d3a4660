package sequence

import (
	"sync"

	"github.com/jeongseonghan/nr-sync/internal/nr"
)

// mSequence runs a length-127 binary recurrence x[i+7] = f(x, i) from seed.
func mSequence(seed [7]byte, next func(x []byte, i int) byte) []byte {
	x := make([]byte, nr.SyncSeqLen)
	copy(x, seed[:])
	for i := 0; i+7 < nr.SyncSeqLen; i++ {
		x[i+7] = next(x, i)
	}
	return x
}

func bipolar(b byte) float64 {
	return 1 - 2*float64(b)
}

// PSS returns the 127-element primary synchronization sequence for sector
// nid2 (TS 38.211 7.4.2.2). Values are +1 or -1. nid2 is taken modulo 3.
func PSS(nid2 int) []float64 {
	nid2 = nr.Mod(nid2, nr.NumNID2)
	x := mSequence([7]byte{1, 0, 0, 0, 0, 0, 0}, func(x []byte, i int) byte {
		return (x[i+4] + x[i]) & 1
	})

	d := make([]float64, nr.SyncSeqLen)
	for n := range d {
		d[n] = bipolar(x[(n+43*nid2)%nr.SyncSeqLen])
	}
	return d
}

// SSS returns the 127-element secondary synchronization sequence for the
// given cell ID group and sector (TS 38.211 7.4.2.3). nid1 is taken modulo
// 336 and nid2 modulo 3.
func SSS(nid1, nid2 int) []float64 {
	nid1 = nr.Mod(nid1, nr.NumNID1)
	nid2 = nr.Mod(nid2, nr.NumNID2)
	seed := [7]byte{0, 0, 0, 0, 0, 0, 1}
	x0 := mSequence(seed, func(x []byte, i int) byte {
		return (x[i+4] + x[i]) & 1
	})
	x1 := mSequence(seed, func(x []byte, i int) byte {
		return (x[i+1] + x[i]) & 1
	})

	m0 := 15*(nid1/112) + 5*nid2
	m1 := nid1 % 112

	d := make([]float64, nr.SyncSeqLen)
	for n := range d {
		d[n] = bipolar(x0[(n+m0)%nr.SyncSeqLen]) * bipolar(x1[(n+m1)%nr.SyncSeqLen])
	}
	return d
}

// ToComplex widens a bipolar sequence to complex values.
func ToComplex(seq []float64) []complex128 {
	out := make([]complex128, len(seq))
	for i, v := range seq {
		out[i] = complex(v, 0)
	}
	return out
}

var pssTable = sync.OnceValue(func() [nr.NumNID2][]float64 {
	var t [nr.NumNID2][]float64
	for nid2 := range t {
		t[nid2] = PSS(nid2)
	}
	return t
})

var sssTable = sync.OnceValue(func() [nr.NumNID2][nr.NumNID1][]float64 {
	var t [nr.NumNID2][nr.NumNID1][]float64
	for nid2 := range t {
		for nid1 := range t[nid2] {
			t[nid2][nid1] = SSS(nid1, nid2)
		}
	}
	return t
})

// PSSReference returns the cached PSS for nid2, reduced as in PSS. The
// slice is shared and must not be modified.
func PSSReference(nid2 int) []float64 {
	return pssTable()[nr.Mod(nid2, nr.NumNID2)]
}

// SSSReference returns the cached SSS for (nid1, nid2), reduced as in SSS.
// The slice is shared and must not be modified.
func SSSReference(nid1, nid2 int) []float64 {
	return sssTable()[nr.Mod(nid2, nr.NumNID2)][nr.Mod(nid1, nr.NumNID1)]
}
