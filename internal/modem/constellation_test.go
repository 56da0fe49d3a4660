package modem

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/jeongseonghan/nr-sync/internal/nr"
)

func TestQPSK_MapDemap(t *testing.T) {
	want := map[[2]byte]complex128{
		{0, 0}: complex(1, 1) / math.Sqrt2,
		{0, 1}: complex(1, -1) / math.Sqrt2,
		{1, 0}: complex(-1, 1) / math.Sqrt2,
		{1, 1}: complex(-1, -1) / math.Sqrt2,
	}

	for bits, point := range want {
		s := Map(bits[0], bits[1])
		if cmplx.Abs(s-point) > 1e-12 {
			t.Errorf("Map(%d, %d) = %v, want %v", bits[0], bits[1], s, point)
		}
		b0, b1 := Demap(s)
		if b0 != bits[0] || b1 != bits[1] {
			t.Errorf("Demap(%v) = (%d, %d), want (%d, %d)", s, b0, b1, bits[0], bits[1])
		}
	}
}

func TestSymbolize_Desymbolize(t *testing.T) {
	for _, n := range []int{0, 2, 10, 864} {
		bits := make([]byte, n)
		for i := range bits {
			bits[i] = byte((i*7 + i/3) % 2)
		}

		symbols, err := Symbolize(bits)
		if err != nil {
			t.Fatalf("Symbolize(%d bits): %v", n, err)
		}
		if len(symbols) != n/2 {
			t.Fatalf("Symbolize(%d bits) returned %d symbols", n, len(symbols))
		}

		recovered := Desymbolize(symbols)
		if len(recovered) != n {
			t.Fatalf("length mismatch: %d != %d", len(recovered), n)
		}
		for i := range bits {
			if bits[i] != recovered[i] {
				t.Errorf("bit %d: %d != %d", i, bits[i], recovered[i])
			}
		}
	}
}

func TestSymbolize_OddLength(t *testing.T) {
	if _, err := Symbolize([]byte{1, 0, 1}); !errors.Is(err, nr.ErrInvalidLength) {
		t.Errorf("Symbolize(3 bits) error = %v, want ErrInvalidLength", err)
	}
}

func TestDesymbolize_SmallPerturbation(t *testing.T) {
	s := Map(1, 0) + complex(0.1, -0.1)
	b0, b1 := Demap(s)
	if b0 != 1 || b1 != 0 {
		t.Errorf("Demap of perturbed (1,0) = (%d, %d)", b0, b1)
	}
}

func TestBytesToBits_BitsToBytes(t *testing.T) {
	data := []byte{0xAB, 0xCD, 0xEF}
	bits := BytesToBits(data)

	if len(bits) != 24 {
		t.Fatalf("Expected 24 bits, got %d", len(bits))
	}
	if bits[0] != 1 || bits[1] != 0 || bits[2] != 1 || bits[3] != 0 {
		t.Errorf("0xAB unpacked as %v, want MSB first", bits[:8])
	}

	recovered := BitsToBytes(bits)
	for i := range data {
		if data[i] != recovered[i] {
			t.Errorf("byte %d: 0x%02x != 0x%02x", i, data[i], recovered[i])
		}
	}
}
