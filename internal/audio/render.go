package audio

import (
	"fmt"

	"github.com/jeongseonghan/nr-sync/internal/modem"
	"github.com/jeongseonghan/nr-sync/internal/nr"
	"github.com/jeongseonghan/nr-sync/internal/ssb"
)

// RenderFrame modulates every column of grid and scales the frame so its
// largest sample equals peak. It returns the samples and the applied gain.
func RenderFrame(grid *ssb.Grid, mod *modem.AudioModulator, peak float64) ([]float32, float64, error) {
	samples := make([]float64, 0, grid.NSymb*mod.SymbolLen())
	for l := 0; l < grid.NSymb; l++ {
		td, err := mod.Modulate(grid.Column(l))
		if err != nil {
			return nil, 0, fmt.Errorf("modulate symbol %d: %w", l, err)
		}
		samples = append(samples, td...)
	}
	gain := modem.NormalizeAmplitude(samples, peak)
	return modem.SamplesToFloat32(samples), gain, nil
}

// CaptureFrame demodulates symbol-aligned samples back into a grid of nSC
// subcarriers, undoing gain.
func CaptureFrame(samples []float32, mod *modem.AudioModulator, nSC int, gain float64) (*ssb.Grid, error) {
	symLen := mod.SymbolLen()
	if len(samples)%symLen != 0 {
		return nil, fmt.Errorf("%w: %d samples is not a whole number of %d-sample symbols", nr.ErrInvalidLength, len(samples), symLen)
	}
	if gain == 0 {
		gain = 1
	}

	nSymb := len(samples) / symLen
	grid := ssb.NewGrid(nSC, nSymb)
	buf := make([]float64, symLen)
	for l := 0; l < nSymb; l++ {
		for i, s := range samples[l*symLen : (l+1)*symLen] {
			buf[i] = float64(s) / gain
		}
		col, err := mod.Demodulate(buf)
		if err != nil {
			return nil, fmt.Errorf("demodulate symbol %d: %w", l, err)
		}
		copy(grid.Column(l), col)
	}
	return grid, nil
}
