package modem

import (
	"fmt"
	"math/cmplx"

	"github.com/jeongseonghan/nr-sync/internal/nr"
)

// Equalizer estimates a per-subcarrier channel response from known pilot
// symbols and applies zero-forcing equalization. It works on one OFDM
// symbol of n subcarriers at a time.
type Equalizer struct {
	n           int
	channelResp []complex128 // H(k)
}

// NewEqualizer creates an equalizer for n subcarriers with a flat channel.
func NewEqualizer(n int) *Equalizer {
	eq := &Equalizer{n: n, channelResp: make([]complex128, n)}
	for k := range eq.channelResp {
		eq.channelResp[k] = 1
	}
	return eq
}

// EstimateChannel estimates H at the pilot subcarriers and linearly
// interpolates in between. Subcarriers outside the first and last pilot
// hold the nearest estimate. positions must be strictly increasing.
func (eq *Equalizer) EstimateChannel(positions []int, received, known []complex128) error {
	if len(positions) != len(received) || len(positions) != len(known) {
		return fmt.Errorf("%w: %d pilot positions, %d received, %d known",
			nr.ErrInvalidLength, len(positions), len(received), len(known))
	}

	type point struct {
		idx int
		val complex128
	}
	points := make([]point, 0, len(positions))
	for i, k := range positions {
		if k < 0 || k >= eq.n {
			return fmt.Errorf("%w: pilot subcarrier %d not in [0,%d)", nr.ErrOutOfBounds, k, eq.n)
		}
		if known[i] != 0 {
			// H(k) = Y(k) / X(k)
			points = append(points, point{k, received[i] / known[i]})
		}
	}
	if len(points) == 0 {
		return nil
	}

	for k := 0; k <= points[0].idx; k++ {
		eq.channelResp[k] = points[0].val
	}
	last := points[len(points)-1]
	for k := last.idx; k < eq.n; k++ {
		eq.channelResp[k] = last.val
	}

	// Linear interpolation between known points
	for i := 0; i < len(points)-1; i++ {
		k1, k2 := points[i].idx, points[i+1].idx
		v1, v2 := points[i].val, points[i+1].val

		for k := k1; k <= k2; k++ {
			t := float64(k-k1) / float64(k2-k1)
			eq.channelResp[k] = v1*complex(1-t, 0) + v2*complex(t, 0)
		}
	}
	return nil
}

// Equalize performs zero-forcing equalization on the symbols at the given
// subcarrier positions.
func (eq *Equalizer) Equalize(positions []int, symbols []complex128) []complex128 {
	equalized := make([]complex128, len(symbols))
	for i, s := range symbols {
		h := eq.channelResp[positions[i]]
		if cmplx.Abs(h) > 1e-10 {
			equalized[i] = s / h
		} else {
			equalized[i] = s
		}
	}
	return equalized
}

// ChannelResponse returns a copy of the estimated channel response.
func (eq *Equalizer) ChannelResponse() []complex128 {
	out := make([]complex128, len(eq.channelResp))
	copy(out, eq.channelResp)
	return out
}
