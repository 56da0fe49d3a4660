package ssb

// Candidate is one SS/PBCH block position within a frame.
type Candidate struct {
	Index      int // i_ssb
	TimeOffset int // first OFDM symbol in the half frame
	KSSB       int // subcarrier offset
}

const (
	ghz3 = 3e9
	ghz6 = 6e9
)

// CandidateIndices returns the first OFDM symbol of every candidate block
// per TS 38.213 4.1, cases A through E, for numerology mu and carrier
// frequency f in Hz. Unsupported combinations return an empty slice.
//
// The order is n-major: for each n, every i offset in turn. Candidate
// ordinals follow this order.
func CandidateIndices(mu int, f float64, sharedSpectrum, pairedSpectrum bool) []int {
	var i, n []int
	step := 0

	switch mu {
	case 0:
		// case A
		i = []int{2, 8}
		switch {
		case sharedSpectrum:
			n = []int{0, 1, 2, 3, 4}
		case f <= ghz3:
			n = []int{0, 1}
		default:
			n = []int{0, 1, 2, 3}
		}
		step = 14
	case 1:
		if !sharedSpectrum && !pairedSpectrum {
			// case B
			i = []int{4, 8, 16, 20}
			if f <= ghz3 {
				n = []int{0}
			} else {
				n = []int{0, 1}
			}
			step = 28
			break
		}
		// case C
		i = []int{2, 8}
		switch {
		case sharedSpectrum:
			n = []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
		case f <= ghz3:
			n = []int{0, 1}
		default:
			n = []int{0, 1, 2, 3}
		}
		step = 14
	case 3:
		// case D
		if f >= ghz6 {
			i = []int{4, 8, 16, 20}
			n = []int{0, 1, 2, 3, 5, 6, 7, 8, 10, 11, 12, 13, 15, 16, 17, 18}
			step = 28
		}
	case 4:
		// case E
		if f >= ghz6 {
			i = []int{8, 12, 16, 20, 32, 36, 40, 44}
			n = []int{0, 1, 2, 3, 5, 6, 7, 8}
			step = 56
		}
	}

	idxs := make([]int, 0, len(i)*len(n))
	for _, nn := range n {
		for _, ii := range i {
			idxs = append(idxs, ii+nn*step)
		}
	}
	return idxs
}

// SSBIndices selects the transmitted candidates. With shared spectrum
// access, 10 candidates at 15 kHz or 20 at 30 kHz are cut to the first 8.
func SSBIndices(candidates []int, mu int, sharedSpectrum bool) []int {
	if sharedSpectrum && ((len(candidates) == 10 && mu == 0) || (len(candidates) == 20 && mu == 1)) {
		return candidates[:8]
	}
	return candidates
}

// Candidates pairs each selected time offset with its ordinal and kSSB.
func Candidates(idxs []int, kSSB int) []Candidate {
	out := make([]Candidate, len(idxs))
	for n, idx := range idxs {
		out[n] = Candidate{Index: n, TimeOffset: idx, KSSB: kSSB}
	}
	return out
}
