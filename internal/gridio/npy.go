// Package gridio reads and writes resource grids as NumPy .npy arrays of
// shape (N_SC, N_SYMB) in Fortran order, so the file body is the
// column-major stream the rest of the module uses. Files ending in .zst
// are zstd-compressed.
package gridio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/sbinet/npyio/npy"

	"github.com/jeongseonghan/nr-sync/internal/nr"
	"github.com/jeongseonghan/nr-sync/internal/ssb"
)

var npyMagic = []byte("\x93NUMPY")

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// Write encodes g as a version 1.0 .npy array of complex64. npy.Write
// only emits 1-D shapes for slices, so the 2-D Fortran-order header is
// written here.
func Write(w io.Writer, g *ssb.Grid) error {
	header := fmt.Sprintf("{'descr': '<c8', 'fortran_order': True, 'shape': (%d, %d), }", g.NSC, g.NSymb)
	// magic + version + header length + header + '\n' is a multiple of 64
	pad := 64 - (len(npyMagic)+4+len(header)+1)%64
	if pad == 64 {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	bw := bufio.NewWriter(w)
	bw.Write(npyMagic)
	bw.Write([]byte{1, 0})
	binary.Write(bw, binary.LittleEndian, uint16(len(header)))
	bw.WriteString(header)

	var buf [8]byte
	for _, v := range g.Data {
		binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(float32(real(v))))
		binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(float32(imag(v))))
		if _, err := bw.Write(buf[:]); err != nil {
			return fmt.Errorf("write grid data: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write grid: %w", err)
	}
	return nil
}

// MaxElements bounds the grid size Read accepts: a full frame of 275
// resource blocks at mu=4 is about 7.4M elements.
const MaxElements = 1 << 24

// gridShape validates an .npy shape: one or two positive dimensions
// whose product is at most MaxElements.
func gridShape(shape []int) (rows, cols int, err error) {
	switch len(shape) {
	case 1:
		rows, cols = shape[0], 1
	case 2:
		rows, cols = shape[0], shape[1]
	default:
		return 0, 0, fmt.Errorf("%w: shape %v is not a grid", nr.ErrInvalidLength, shape)
	}
	if rows < 1 || cols < 1 {
		return 0, 0, fmt.Errorf("%w: shape %v has an empty dimension", nr.ErrInvalidLength, shape)
	}
	if rows > MaxElements/cols {
		return 0, 0, fmt.Errorf("%w: shape %v exceeds %d elements", nr.ErrInvalidLength, shape, MaxElements)
	}
	return rows, cols, nil
}

// Read decodes a complex .npy array into a grid. Rows are subcarriers and
// columns symbols; a 1-D array becomes a single symbol. C-ordered arrays
// are transposed into column-major storage.
func Read(r io.Reader) (*ssb.Grid, error) {
	npr, err := npy.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("read npy header: %w", err)
	}
	hdr := npr.Header
	rows, cols, err := gridShape(hdr.Descr.Shape)
	if err != nil {
		return nil, err
	}

	var data []complex128
	switch hdr.Descr.Type {
	case "<c8":
		var v []complex64
		if err := npr.Read(&v); err != nil {
			return nil, fmt.Errorf("read grid data: %w", err)
		}
		data = make([]complex128, len(v))
		for i, x := range v {
			data[i] = complex128(x)
		}
	case "<c16":
		if err := npr.Read(&data); err != nil {
			return nil, fmt.Errorf("read grid data: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported dtype %s, want <c8 or <c16", hdr.Descr.Type)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %d elements for shape %v", nr.ErrInvalidLength, len(data), hdr.Descr.Shape)
	}

	if hdr.Descr.Fortran || cols == 1 {
		return ssb.GridFromData(rows, cols, data)
	}
	g := ssb.NewGrid(rows, cols)
	for i, v := range data {
		g.Set(i/cols, i%cols, v)
	}
	return g, nil
}

// WriteFile writes g to path, compressing when path ends in .zst.
func WriteFile(path string, g *ssb.Grid) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	if !strings.HasSuffix(path, ".zst") {
		return Write(f, g)
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if err := Write(enc, g); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish zstd stream: %w", err)
	}
	return nil
}

// ReadFile reads a grid from path. Compression is detected from the file
// contents.
func ReadFile(path string) (*ssb.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadAuto(f)
}

// ReadAuto reads a plain or zstd-compressed .npy grid.
func ReadAuto(r io.Reader) (*ssb.Grid, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zstdMagic))
	if err != nil {
		return nil, fmt.Errorf("read grid: %w", err)
	}
	if !bytes.Equal(head, zstdMagic) {
		return Read(br)
	}

	dec, err := zstd.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()
	return Read(dec)
}
