package ssb

import (
	"errors"
	"testing"

	"github.com/jeongseonghan/nr-sync/internal/nr"
)

func ramp(n int, scale float64) []complex128 {
	out := make([]complex128, n)
	for i := range out {
		out[i] = complex(float64(i+1)*scale, -float64(i))
	}
	return out
}

func TestMapPSS_Placement(t *testing.T) {
	data := ramp(nr.SyncSeqLen, 1)
	block, err := MapPSS(data, Dimensions{})
	if err != nil {
		t.Fatalf("MapPSS failed: %v", err)
	}

	for l := 0; l < nr.SSBSymbols; l++ {
		for k := 0; k < nr.SSBSubcarriers; k++ {
			got := block.At(k, l)
			if l == 0 && k >= 56 && k < 183 {
				if got != data[k-56] {
					t.Fatalf("(%d,%d): got %v, want %v", k, l, got, data[k-56])
				}
				continue
			}
			if got != 0 {
				t.Fatalf("(%d,%d) should be empty, got %v", k, l, got)
			}
		}
	}
}

func TestMapSSS_RoundTrip(t *testing.T) {
	data := ramp(nr.SyncSeqLen, 0.5)
	block, err := MapSSS(data, Dimensions{})
	if err != nil {
		t.Fatalf("MapSSS failed: %v", err)
	}
	if block.At(56, 2) != data[0] || block.At(182, 2) != data[126] {
		t.Error("SSS not on symbol 2 subcarriers [56,183)")
	}

	got, err := UnmapSSS(block)
	if err != nil {
		t.Fatalf("UnmapSSS failed: %v", err)
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("SSS[%d]: got %v, want %v", i, got[i], data[i])
		}
	}

	pss, _ := UnmapPSS(block)
	for i, v := range pss {
		if v != 0 {
			t.Fatalf("PSS[%d] should be empty, got %v", i, v)
		}
	}
}

func TestMapPBCH_RoundTrip(t *testing.T) {
	pbch := ramp(nr.PBCHSymbols, 1)
	dmrs := ramp(nr.DMRSSymbols, 1000)

	for nu := 0; nu < 4; nu++ {
		dims := Dimensions{Nu: nu}
		block, err := MapPBCH(pbch, dmrs, dims)
		if err != nil {
			t.Fatalf("nu=%d: MapPBCH failed: %v", nu, err)
		}

		gotPBCH, gotDMRS, err := UnmapPBCH(block, dims)
		if err != nil {
			t.Fatalf("nu=%d: UnmapPBCH failed: %v", nu, err)
		}
		for i := range pbch {
			if gotPBCH[i] != pbch[i] {
				t.Fatalf("nu=%d: PBCH[%d] got %v, want %v", nu, i, gotPBCH[i], pbch[i])
			}
		}
		for i := range dmrs {
			if gotDMRS[i] != dmrs[i] {
				t.Fatalf("nu=%d: DMRS[%d] got %v, want %v", nu, i, gotDMRS[i], dmrs[i])
			}
		}
	}
}

func TestMapPBCH_Layout(t *testing.T) {
	pbch := make([]complex128, nr.PBCHSymbols)
	dmrs := make([]complex128, nr.DMRSSymbols)
	for i := range pbch {
		pbch[i] = 1
	}
	for i := range dmrs {
		dmrs[i] = 2
	}

	nu := 3
	block, err := MapPBCH(pbch, dmrs, Dimensions{Nu: nu})
	if err != nil {
		t.Fatalf("MapPBCH failed: %v", err)
	}

	for l := 0; l < nr.SSBSymbols; l++ {
		for k := 0; k < nr.SSBSubcarriers; k++ {
			var want complex128
			switch {
			case l == 0, l == 2 && k >= 48 && k < 192:
				want = 0
			case k%4 == nu:
				want = 2
			default:
				want = 1
			}
			if got := block.At(k, l); got != want {
				t.Fatalf("(%d,%d): got %v, want %v", k, l, got, want)
			}
		}
	}
}

func TestSubcarrierTables(t *testing.T) {
	tests := []struct {
		l                  int
		dmrsLen, dmrsFirst int
		pbchLen, pbchFirst int
	}{
		{1, 60, 0, 180, 0},
		{2, 24, 60, 72, 180},
		{3, 60, 84, 180, 252},
	}

	for _, tt := range tests {
		sc, first := DMRSSubcarriers(1, tt.l)
		if len(sc) != tt.dmrsLen || first != tt.dmrsFirst {
			t.Errorf("DMRS l=%d: got %d from %d, want %d from %d", tt.l, len(sc), first, tt.dmrsLen, tt.dmrsFirst)
		}
		for _, k := range sc {
			if k%4 != 1 {
				t.Errorf("DMRS l=%d: subcarrier %d off comb", tt.l, k)
			}
		}

		sc, first = PBCHSubcarriers(1, tt.l)
		if len(sc) != tt.pbchLen || first != tt.pbchFirst {
			t.Errorf("PBCH l=%d: got %d from %d, want %d from %d", tt.l, len(sc), first, tt.pbchLen, tt.pbchFirst)
		}
	}

	if sc, first := DMRSSubcarriers(0, 0); sc != nil || first != -1 {
		t.Errorf("symbol 0 should carry no DM-RS, got %v from %d", sc, first)
	}
}

func TestMap_InvalidLength(t *testing.T) {
	if _, err := MapPSS(make([]complex128, 126), Dimensions{}); !errors.Is(err, nr.ErrInvalidLength) {
		t.Errorf("MapPSS(126): expected ErrInvalidLength, got %v", err)
	}
	if _, err := MapSSS(make([]complex128, 128), Dimensions{}); !errors.Is(err, nr.ErrInvalidLength) {
		t.Errorf("MapSSS(128): expected ErrInvalidLength, got %v", err)
	}
	if _, err := MapPBCH(make([]complex128, 431), make([]complex128, 144), Dimensions{}); !errors.Is(err, nr.ErrInvalidLength) {
		t.Errorf("MapPBCH(431,144): expected ErrInvalidLength, got %v", err)
	}
	if _, err := MapPBCH(make([]complex128, 432), make([]complex128, 145), Dimensions{}); !errors.Is(err, nr.ErrInvalidLength) {
		t.Errorf("MapPBCH(432,145): expected ErrInvalidLength, got %v", err)
	}
	if _, _, err := UnmapPBCH(NewGrid(240, 3), Dimensions{}); !errors.Is(err, nr.ErrInvalidLength) {
		t.Errorf("UnmapPBCH(240x3): expected ErrInvalidLength, got %v", err)
	}
}
