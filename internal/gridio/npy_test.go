package gridio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeongseonghan/nr-sync/internal/nr"
	"github.com/jeongseonghan/nr-sync/internal/ssb"
)

func testGrid() *ssb.Grid {
	g := ssb.NewGrid(5, 3)
	for i := range g.Data {
		// exactly representable in float32
		g.Data[i] = complex(float64(i)*0.5, -float64(i)*0.25)
	}
	return g
}

func equalGrids(t *testing.T, got, want *ssb.Grid) {
	t.Helper()
	if got.NSC != want.NSC || got.NSymb != want.NSymb {
		t.Fatalf("shape %dx%d, want %dx%d", got.NSC, got.NSymb, want.NSC, want.NSymb)
	}
	for i := range want.Data {
		if got.Data[i] != want.Data[i] {
			t.Fatalf("element %d: got %v, want %v", i, got.Data[i], want.Data[i])
		}
	}
}

func TestWrite_Header(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testGrid()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data := buf.Bytes()

	if !bytes.HasPrefix(data, []byte("\x93NUMPY\x01\x00")) {
		t.Fatalf("bad preamble %q", data[:8])
	}
	hlen := int(binary.LittleEndian.Uint16(data[8:10]))
	if (10+hlen)%64 != 0 {
		t.Errorf("header end %d not 64-byte aligned", 10+hlen)
	}
	header := string(data[10 : 10+hlen])
	for _, want := range []string{"'descr': '<c8'", "'fortran_order': True", "'shape': (5, 3)"} {
		if !strings.Contains(header, want) {
			t.Errorf("header %q missing %s", header, want)
		}
	}
	if !strings.HasSuffix(header, "\n") {
		t.Error("header should end with a newline")
	}
	if len(data) != 10+hlen+15*8 {
		t.Errorf("file is %d bytes, want %d", len(data), 10+hlen+15*8)
	}

	// body is column-major: element 1 is subcarrier 1 of symbol 0
	re := math.Float32frombits(binary.LittleEndian.Uint32(data[10+hlen+8:]))
	if re != 0.5 {
		t.Errorf("second element real part %v, want 0.5", re)
	}
}

func TestReadWrite_RoundTrip(t *testing.T) {
	g := testGrid()
	var buf bytes.Buffer
	if err := Write(&buf, g); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	equalGrids(t, got, g)
}

// npyFile builds a .npy file by hand.
func npyFile(header string, body []byte) []byte {
	pad := 64 - (10+len(header)+1)%64
	header += strings.Repeat(" ", pad%64) + "\n"
	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY\x01\x00")
	binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	buf.Write(body)
	return buf.Bytes()
}

func TestRead_COrderComplex128(t *testing.T) {
	// shape (2, 3), row-major: [[0, 1, 2], [3, 4, 5]]
	var body bytes.Buffer
	for i := 0; i < 6; i++ {
		binary.Write(&body, binary.LittleEndian, float64(i))
		binary.Write(&body, binary.LittleEndian, float64(-i))
	}
	file := npyFile("{'descr': '<c16', 'fortran_order': False, 'shape': (2, 3), }", body.Bytes())

	g, err := Read(bytes.NewReader(file))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if g.NSC != 2 || g.NSymb != 3 {
		t.Fatalf("shape %dx%d", g.NSC, g.NSymb)
	}
	if g.At(1, 0) != complex(3, -3) || g.At(0, 2) != complex(2, -2) {
		t.Errorf("C-order array not transposed: %v", g.Data)
	}
}

func TestRead_OneDimensional(t *testing.T) {
	var body bytes.Buffer
	for i := 0; i < 4; i++ {
		binary.Write(&body, binary.LittleEndian, float32(i))
		binary.Write(&body, binary.LittleEndian, float32(0))
	}
	file := npyFile("{'descr': '<c8', 'fortran_order': False, 'shape': (4,), }", body.Bytes())

	g, err := Read(bytes.NewReader(file))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if g.NSC != 4 || g.NSymb != 1 || g.At(3, 0) != 3 {
		t.Errorf("got %dx%d %v", g.NSC, g.NSymb, g.Data)
	}
}

func TestRead_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not npy", []byte("hello world, not numpy")},
		{"real dtype", npyFile("{'descr': '<f8', 'fortran_order': True, 'shape': (1, 1), }", make([]byte, 8))},
		{"3-D", npyFile("{'descr': '<c8', 'fortran_order': True, 'shape': (1, 1, 1), }", make([]byte, 8))},
		{"truncated", npyFile("{'descr': '<c8', 'fortran_order': True, 'shape': (2, 2), }", make([]byte, 20))},
	}
	for _, tt := range tests {
		if _, err := Read(bytes.NewReader(tt.data)); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestRead_BadShape(t *testing.T) {
	shapes := []string{"(-4, 3)", "(240, 0)", "(0,)", "(0, 0)", "(100000, 100000)", "(4, -1)"}
	for _, shape := range shapes {
		file := npyFile("{'descr': '<c8', 'fortran_order': True, 'shape': "+shape+", }", make([]byte, 64))
		_, err := Read(bytes.NewReader(file))
		if !errors.Is(err, nr.ErrInvalidLength) {
			t.Errorf("shape %s: expected ErrInvalidLength, got %v", shape, err)
		}
	}
}

func TestFile_Compressed(t *testing.T) {
	dir := t.TempDir()
	g := testGrid()

	for _, name := range []string{"grid.npy", "grid.npy.zst"} {
		path := filepath.Join(dir, name)
		if err := WriteFile(path, g); err != nil {
			t.Fatalf("WriteFile(%s) failed: %v", name, err)
		}
		got, err := ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(%s) failed: %v", name, err)
		}
		equalGrids(t, got, g)
	}

	if _, err := ReadFile(filepath.Join(dir, "missing.npy")); err == nil {
		t.Error("missing file should fail")
	}
}
