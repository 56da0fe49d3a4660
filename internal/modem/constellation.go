package modem

import (
	"fmt"
	"math"

	"github.com/jeongseonghan/nr-sync/internal/nr"
)

// QPSK modulation per TS 38.211 5.1.3: bit pair (b0, b1) maps to
// ((1-2*b0) + j(1-2*b1)) / sqrt(2).

// Symbolize maps bits (one 0/1 value per byte) to QPSK symbols.
func Symbolize(bits []byte) ([]complex128, error) {
	if len(bits)%2 != 0 {
		return nil, fmt.Errorf("%w: QPSK needs an even bit count, got %d", nr.ErrInvalidLength, len(bits))
	}

	symbols := make([]complex128, len(bits)/2)
	for i := range symbols {
		symbols[i] = Map(bits[2*i], bits[2*i+1])
	}
	return symbols, nil
}

// Map maps a single bit pair to its QPSK point.
func Map(b0, b1 byte) complex128 {
	return complex(1-2*float64(b0&1), 1-2*float64(b1&1)) / math.Sqrt2
}

// Desymbolize inverts Symbolize. Recovery is exact for noiseless or
// equalized input; each component is rounded to the nearest bit.
func Desymbolize(symbols []complex128) []byte {
	bits := make([]byte, 0, 2*len(symbols))
	for _, s := range symbols {
		b0, b1 := Demap(s)
		bits = append(bits, b0, b1)
	}
	return bits
}

// Demap returns the bit pair for a received symbol.
func Demap(s complex128) (byte, byte) {
	return demapComponent(real(s)), demapComponent(imag(s))
}

func demapComponent(v float64) byte {
	b := math.Round((1 - math.Sqrt2*v) / 2)
	if b <= 0 {
		return 0
	}
	return 1
}

// BytesToBits unpacks bytes MSB first into one bit per byte.
func BytesToBits(data []byte) []byte {
	bits := make([]byte, len(data)*8)
	for i, b := range data {
		for j := 7; j >= 0; j-- {
			bits[i*8+(7-j)] = (b >> uint(j)) & 1
		}
	}
	return bits
}

// BitsToBytes packs bits MSB first. Trailing bits that do not fill a byte
// are dropped.
func BitsToBytes(bits []byte) []byte {
	numBytes := len(bits) / 8
	data := make([]byte, numBytes)
	for i := 0; i < numBytes; i++ {
		var b byte
		for j := 0; j < 8; j++ {
			b = (b << 1) | (bits[i*8+j] & 1)
		}
		data[i] = b
	}
	return data
}
