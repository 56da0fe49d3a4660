package acquisition

import (
	"fmt"

	"github.com/jeongseonghan/nr-sync/internal/nr"
	"github.com/jeongseonghan/nr-sync/internal/ssb"
)

// Searching is the Remaining value of a detector that is not collecting.
const Searching = -1

// State is the complete detector state between two steps. The zero value
// is not valid; start from NewState.
type State struct {
	NID2      int
	KSSB      int
	ISSB      int     // running block counter, -1 before the first peak
	Remaining int     // symbols still to collect, Searching when idle
	PeakCorr  float64 // correlation of the peak being collected

	// Buffer holds the collected block column-major: the PSS symbol
	// first, then the three following symbols.
	Buffer [nr.SSBSize]complex128

	// Observations from the last step.
	Peak      Peak
	Triggered bool // a peak started a new collection
	Restarted bool // the peak arrived while still collecting
}

// NewState returns the initial searching state.
func NewState() State {
	return State{NID2: -1, KSSB: -1, ISSB: -1, Remaining: Searching}
}

// Collecting reports whether the detector is accumulating a block.
func (s State) Collecting() bool { return s.Remaining != Searching }

// Detection is a completed SS/PBCH block.
type Detection struct {
	NID2        int
	KSSB        int
	ISSB        int
	Correlation float64 // PSS peak that started the collection
	Block       *ssb.Grid
}

// Detector holds the fixed parameters of the streaming PSS detector.
type Detector struct {
	NSC       int     // subcarriers per input symbol
	LMax      int     // blocks per half frame
	Threshold float64 // minimum PSS correlation
}

// NewDetector validates the detector parameters.
func NewDetector(nSC, lMax int, threshold float64) (*Detector, error) {
	if nSC < nr.SSBSubcarriers {
		return nil, fmt.Errorf("%w: %d subcarriers cannot hold a block", nr.ErrInvalidConfig, nSC)
	}
	if lMax < 1 {
		return nil, fmt.Errorf("%w: L_max %d < 1", nr.ErrInvalidConfig, lMax)
	}
	if threshold <= 0 {
		return nil, fmt.Errorf("%w: threshold %g must be positive", nr.ErrInvalidConfig, threshold)
	}
	return &Detector{NSC: nSC, LMax: lMax, Threshold: threshold}, nil
}

// Step consumes one OFDM symbol and returns the next state. Detection is
// non-nil on the step that completes a block.
//
// A correlation peak at or above Threshold whose block fits inside the
// symbol starts collection with that symbol as block symbol 0 and
// advances ISSB modulo LMax. A peak while collecting restarts the
// collection and keeps the previous ISSB, treating the earlier peak as
// spurious.
func (d *Detector) Step(s State, symbol []complex128) (State, *Detection, error) {
	if len(symbol) != d.NSC {
		return s, nil, fmt.Errorf("%w: symbol has %d subcarriers, want %d", nr.ErrInvalidLength, len(symbol), d.NSC)
	}

	peak, err := CorrelatePSS(symbol)
	if err != nil {
		return s, nil, err
	}
	s.Peak = peak
	s.Triggered = false
	s.Restarted = false

	if k := peak.KSSB(); peak.Correlation >= d.Threshold && k >= 0 && k+nr.SSBSubcarriers <= d.NSC {
		if s.Collecting() {
			s.ISSB--
			s.Restarted = true
		}
		s.Remaining = nr.SSBSymbols - 1
		s.ISSB = nr.Mod(s.ISSB+1, d.LMax)
		s.NID2 = peak.NID2
		s.KSSB = k
		s.PeakCorr = peak.Correlation
		s.Triggered = true
	}

	if !s.Collecting() {
		return s, nil, nil
	}

	col := nr.SSBSymbols - 1 - s.Remaining
	copy(s.Buffer[col*nr.SSBSubcarriers:(col+1)*nr.SSBSubcarriers], symbol[s.KSSB:s.KSSB+nr.SSBSubcarriers])
	s.Remaining--
	if s.Collecting() {
		return s, nil, nil
	}

	block := ssb.NewBlock()
	copy(block.Data, s.Buffer[:])
	return s, &Detection{
		NID2:        s.NID2,
		KSSB:        s.KSSB,
		ISSB:        s.ISSB,
		Correlation: s.PeakCorr,
		Block:       block,
	}, nil
}

// Stream owns a detector state and feeds it one symbol at a time. It is
// not safe for concurrent use.
type Stream struct {
	det   *Detector
	state State
}

// NewStream starts a stream in the searching state.
func NewStream(det *Detector) *Stream {
	return &Stream{det: det, state: NewState()}
}

// Process steps the detector with symbol.
func (s *Stream) Process(symbol []complex128) (*Detection, error) {
	next, det, err := s.det.Step(s.state, symbol)
	if err != nil {
		return nil, err
	}
	s.state = next
	return det, nil
}

// State returns a copy of the current state.
func (s *Stream) State() State { return s.state }

// Reset returns the stream to its initial state.
func (s *Stream) Reset() {
	s.state = NewState()
}
