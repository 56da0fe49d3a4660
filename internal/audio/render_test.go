package audio

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/jeongseonghan/nr-sync/internal/acquisition"
	"github.com/jeongseonghan/nr-sync/internal/modem"
	"github.com/jeongseonghan/nr-sync/internal/nr"
	"github.com/jeongseonghan/nr-sync/internal/ssb"
)

func TestRenderCapture_Loopback(t *testing.T) {
	cfg := ssb.GridConfig{NRB: 20, Cell: nr.CellIdentity{NID1: 3, NID2: 0}, Mu: 1, SharedSpectrum: true}
	grid, err := ssb.BuildGrid(cfg, nil)
	if err != nil {
		t.Fatalf("BuildGrid failed: %v", err)
	}

	mod, err := modem.NewAudioModulator(grid.NSC, 16, 1024, 64)
	if err != nil {
		t.Fatalf("NewAudioModulator failed: %v", err)
	}

	samples, gain, err := RenderFrame(grid, mod, 0.5)
	if err != nil {
		t.Fatalf("RenderFrame failed: %v", err)
	}
	if len(samples) != grid.NSymb*mod.SymbolLen() {
		t.Fatalf("expected %d samples, got %d", grid.NSymb*mod.SymbolLen(), len(samples))
	}
	peak := 0.0
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	if math.Abs(peak-0.5) > 1e-6 {
		t.Errorf("peak %v, want 0.5", peak)
	}

	got, err := CaptureFrame(samples, mod, grid.NSC, gain)
	if err != nil {
		t.Fatalf("CaptureFrame failed: %v", err)
	}
	// float32 quantization bounds the error
	for i := range grid.Data {
		if cmplx.Abs(got.Data[i]-grid.Data[i]) > 1e-3 {
			t.Fatalf("element %d: got %v, want %v", i, got.Data[i], grid.Data[i])
		}
	}

	rx, err := acquisition.NewReceiver(acquisition.ReceiverConfig{NSC: grid.NSC, LMax: cfg.LMax(), Threshold: 80}, nil, nil)
	if err != nil {
		t.Fatalf("NewReceiver failed: %v", err)
	}
	found := 0
	for l := 0; l < got.NSymb; l++ {
		res, err := rx.Process(got.Column(l))
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		if res != nil {
			if res.Cell != cfg.Cell {
				t.Errorf("detected %v, want %v", res.Cell, cfg.Cell)
			}
			found++
		}
	}
	if found != cfg.LMax() {
		t.Errorf("expected %d blocks after loopback, got %d", cfg.LMax(), found)
	}
}

func TestCaptureFrame_PartialSymbol(t *testing.T) {
	mod, _ := modem.NewAudioModulator(240, 16, 1024, 64)
	if _, err := CaptureFrame(make([]float32, 1000), mod, 240, 1); !errors.Is(err, nr.ErrInvalidLength) {
		t.Errorf("expected ErrInvalidLength, got %v", err)
	}
}

func TestChunk(t *testing.T) {
	chunks := Chunk([]float32{1, 2, 3, 4, 5}, 2)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[2][0] != 5 || chunks[2][1] != 0 {
		t.Errorf("last chunk should be zero-padded, got %v", chunks[2])
	}
	if len(Chunk(nil, 4)) != 0 {
		t.Error("empty input should produce no chunks")
	}
}
