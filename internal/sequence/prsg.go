// Package sequence generates the deterministic bit and bipolar sequences of
// TS 38.211: the length-31 Gold sequence, PSS, SSS and PBCH DM-RS.
package sequence

import (
	"fmt"

	"github.com/jeongseonghan/nr-sync/internal/nr"
)

// Nc is the Gold sequence warm-up length (TS 38.211 5.2.1).
const Nc = 1600

// PRSG returns the first n bits of the pseudo-random Gold sequence
// initialized with cInit. Each bit is 0 or 1.
func PRSG(n int, cInit uint32) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: sequence length %d", nr.ErrInvalidLength, n)
	}

	total := n + Nc
	if total < 31 {
		total = 31
	}
	x1 := make([]byte, total)
	x2 := make([]byte, total)
	x1[0] = 1
	for i := 0; i < 31; i++ {
		x2[i] = byte(cInit>>uint(i)) & 1
	}

	for i := 0; i+31 < total; i++ {
		x1[i+31] = (x1[i+3] + x1[i]) & 1
		x2[i+31] = (x2[i+3] + x2[i+2] + x2[i+1] + x2[i]) & 1
	}

	c := make([]byte, n)
	for i := range c {
		c[i] = (x1[i+Nc] + x2[i+Nc]) & 1
	}
	return c, nil
}
