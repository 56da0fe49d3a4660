package nr

import (
	"errors"
	"testing"
)

func TestCellIdentity(t *testing.T) {
	tests := []struct {
		nid1, nid2 int
		cell, nu   int
	}{
		{0, 0, 0, 0},
		{0, 1, 1, 1},
		{10, 2, 32, 0},
		{335, 2, 1007, 3},
	}

	for _, tt := range tests {
		c, err := NewCellIdentity(tt.nid1, tt.nid2)
		if err != nil {
			t.Fatalf("NewCellIdentity(%d, %d): %v", tt.nid1, tt.nid2, err)
		}
		if c.CellID() != tt.cell {
			t.Errorf("CellID(%d, %d) = %d, want %d", tt.nid1, tt.nid2, c.CellID(), tt.cell)
		}
		if c.Nu() != tt.nu {
			t.Errorf("Nu(%d, %d) = %d, want %d", tt.nid1, tt.nid2, c.Nu(), tt.nu)
		}
	}
}

func TestCellIdentity_OutOfRange(t *testing.T) {
	for _, c := range []CellIdentity{{-1, 0}, {336, 0}, {0, 3}, {0, -1}} {
		if _, err := NewCellIdentity(c.NID1, c.NID2); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("NewCellIdentity(%d, %d) error = %v, want ErrInvalidConfig", c.NID1, c.NID2, err)
		}
	}
}

func TestGridDimensions(t *testing.T) {
	tests := []struct {
		mu, nRB   int
		sc, symbs int
	}{
		{0, 20, 240, 140},
		{1, 20, 240, 280},
		{3, 40, 480, 1120},
	}
	for _, tt := range tests {
		sc, symbs := GridDimensions(tt.mu, tt.nRB)
		if sc != tt.sc || symbs != tt.symbs {
			t.Errorf("GridDimensions(%d, %d) = (%d, %d), want (%d, %d)", tt.mu, tt.nRB, sc, symbs, tt.sc, tt.symbs)
		}
	}
}

func TestCPLength(t *testing.T) {
	if got := CPLength(0, 0, false); got != 160 {
		t.Errorf("CPLength(0, 0) = %v, want 160", got)
	}
	if got := CPLength(0, 1, false); got != 144 {
		t.Errorf("CPLength(0, 1) = %v, want 144", got)
	}
	if got := CPLength(1, 14, false); got != 88 {
		t.Errorf("CPLength(1, 14) = %v, want 88", got)
	}
	if got := CPLength(2, 3, true); got != 128 {
		t.Errorf("CPLength(2, 3, extended) = %v, want 128", got)
	}
}

func TestMod(t *testing.T) {
	if Mod(-1, 8) != 7 || Mod(9, 8) != 1 || Mod(0, 4) != 0 {
		t.Error("Mod returned a value outside [0,m)")
	}
}
