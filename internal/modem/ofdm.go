package modem

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/jeongseonghan/nr-sync/internal/nr"
)

// OFDM converts resource grid columns to complex baseband OFDM symbols and
// back. Subcarrier k of an nSC-wide column sits on FFT bin k - nSC/2
// (wrapped), so the grid is centered on DC.
//
// An OFDM value reuses FFT work buffers and is not safe for concurrent use.
type OFDM struct {
	nSC     int
	fftSize int
	cpLen   int
	fft     *fourier.CmplxFFT
}

// NewOFDM creates a transform for nSC subcarriers.
func NewOFDM(nSC, fftSize, cpLen int) (*OFDM, error) {
	if nSC < 1 || fftSize < nSC {
		return nil, fmt.Errorf("%w: fft size %d cannot hold %d subcarriers", nr.ErrInvalidConfig, fftSize, nSC)
	}
	if cpLen < 0 || cpLen > fftSize {
		return nil, fmt.Errorf("%w: cyclic prefix %d for fft size %d", nr.ErrInvalidConfig, cpLen, fftSize)
	}
	return &OFDM{
		nSC:     nSC,
		fftSize: fftSize,
		cpLen:   cpLen,
		fft:     fourier.NewCmplxFFT(fftSize),
	}, nil
}

// SymbolLen returns the number of samples per OFDM symbol including CP.
func (o *OFDM) SymbolLen() int { return o.fftSize + o.cpLen }

func (o *OFDM) bin(k int) int {
	return nr.Mod(k-o.nSC/2, o.fftSize)
}

// Modulate converts one column of nSC subcarriers into time-domain samples.
func (o *OFDM) Modulate(column []complex128) ([]complex128, error) {
	if len(column) != o.nSC {
		return nil, fmt.Errorf("%w: column has %d subcarriers, want %d", nr.ErrInvalidLength, len(column), o.nSC)
	}

	spectrum := make([]complex128, o.fftSize)
	for k, v := range column {
		spectrum[o.bin(k)] = v
	}

	// Sequence is unnormalized
	td := o.fft.Sequence(nil, spectrum)
	scale := complex(1/float64(o.fftSize), 0)
	for i := range td {
		td[i] *= scale
	}

	return addCyclicPrefix(td, o.cpLen), nil
}

// Demodulate strips the cyclic prefix and returns the nSC subcarriers.
func (o *OFDM) Demodulate(samples []complex128) ([]complex128, error) {
	if len(samples) != o.SymbolLen() {
		return nil, fmt.Errorf("%w: symbol has %d samples, want %d", nr.ErrInvalidLength, len(samples), o.SymbolLen())
	}

	spectrum := o.fft.Coefficients(nil, samples[o.cpLen:])
	column := make([]complex128, o.nSC)
	for k := range column {
		column[k] = spectrum[o.bin(k)]
	}
	return column, nil
}

// AudioModulator produces real-valued OFDM symbols for an acoustic channel.
// Subcarriers occupy bins [start, start+nSC) of a real FFT; the negative
// frequencies follow from Hermitian symmetry.
//
// An AudioModulator is not safe for concurrent use.
type AudioModulator struct {
	nSC     int
	start   int
	fftSize int
	cpLen   int
	fft     *fourier.FFT
}

// NewAudioModulator creates a real-valued transform. The band must stay
// strictly between DC and Nyquist.
func NewAudioModulator(nSC, start, fftSize, cpLen int) (*AudioModulator, error) {
	if nSC < 1 || start < 1 || start+nSC >= fftSize/2 {
		return nil, fmt.Errorf("%w: band [%d,%d) does not fit below nyquist bin %d", nr.ErrInvalidConfig, start, start+nSC, fftSize/2)
	}
	if cpLen < 0 || cpLen > fftSize {
		return nil, fmt.Errorf("%w: cyclic prefix %d for fft size %d", nr.ErrInvalidConfig, cpLen, fftSize)
	}
	return &AudioModulator{
		nSC:     nSC,
		start:   start,
		fftSize: fftSize,
		cpLen:   cpLen,
		fft:     fourier.NewFFT(fftSize),
	}, nil
}

// SymbolLen returns the number of samples per OFDM symbol including CP.
func (m *AudioModulator) SymbolLen() int { return m.fftSize + m.cpLen }

// Modulate converts one grid column into real time-domain samples.
func (m *AudioModulator) Modulate(column []complex128) ([]float64, error) {
	if len(column) != m.nSC {
		return nil, fmt.Errorf("%w: column has %d subcarriers, want %d", nr.ErrInvalidLength, len(column), m.nSC)
	}

	// n/2+1 coefficients; DC and Nyquist stay zero
	coeff := make([]complex128, m.fftSize/2+1)
	copy(coeff[m.start:], column)

	td := m.fft.Sequence(nil, coeff)
	for i := range td {
		td[i] /= float64(m.fftSize)
	}

	n := len(td)
	out := make([]float64, m.cpLen+n)
	copy(out, td[n-m.cpLen:])
	copy(out[m.cpLen:], td)
	return out, nil
}

// Demodulate recovers the grid column from real samples.
func (m *AudioModulator) Demodulate(samples []float64) ([]complex128, error) {
	if len(samples) != m.SymbolLen() {
		return nil, fmt.Errorf("%w: symbol has %d samples, want %d", nr.ErrInvalidLength, len(samples), m.SymbolLen())
	}

	coeff := m.fft.Coefficients(nil, samples[m.cpLen:])
	column := make([]complex128, m.nSC)
	copy(column, coeff[m.start:m.start+m.nSC])
	return column, nil
}

func addCyclicPrefix(samples []complex128, cpLen int) []complex128 {
	n := len(samples)
	result := make([]complex128, cpLen+n)
	// Copy last cpLen samples to the beginning
	copy(result, samples[n-cpLen:])
	copy(result[cpLen:], samples)
	return result
}

// NormalizeAmplitude scales samples in place so the largest magnitude
// equals peak. It returns the applied gain.
func NormalizeAmplitude(samples []float64, peak float64) float64 {
	maxAbs := 0.0
	for _, s := range samples {
		if abs := math.Abs(s); abs > maxAbs {
			maxAbs = abs
		}
	}
	if maxAbs == 0 {
		return 1
	}
	gain := peak / maxAbs
	for i := range samples {
		samples[i] *= gain
	}
	return gain
}

// SamplesToFloat32 converts float64 samples to float32 for audio output.
func SamplesToFloat32(samples []float64) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s)
	}
	return out
}
