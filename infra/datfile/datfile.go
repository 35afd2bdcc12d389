// Package datfile writes per-tick rows to binary .dat files. Each file starts
// with a small header; every record carries a CRC-16/ARC trailer so a
// truncated tail can be detected.
package datfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/sigurn/crc16"

	"github.com/kilianp07/lpgsim/core/activation"
	"github.com/kilianp07/lpgsim/core/model"
)

const (
	magic   = "LPGD"
	version = 1
)

var (
	crcTable = crc16.MakeTable(crc16.CRC16_ARC)

	// ErrChecksum reports a record whose trailer does not match its content.
	ErrChecksum = errors.New("datfile: checksum mismatch")
	// ErrHeader reports a file that is not a row stream.
	ErrHeader = errors.New("datfile: bad header")
)

// Header describes a stream.
type Header struct {
	Kind     activation.StreamKind
	LoadType string
	Unit     string
}

// Writer appends rows to a .dat file.
type Writer struct {
	f   *os.File
	w   *bufio.Writer
	buf []byte
}

// Create opens path for writing and writes the header.
func Create(path string, h Header) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &Writer{f: f, w: bufio.NewWriter(f)}
	if err := w.writeHeader(h); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) writeHeader(h Header) error {
	hdr := []byte(magic)
	hdr = binary.LittleEndian.AppendUint16(hdr, version)
	hdr = append(hdr, byte(h.Kind))
	hdr = appendString(hdr, h.LoadType)
	hdr = appendString(hdr, h.Unit)
	_, err := w.w.Write(hdr)
	return err
}

func appendString(b []byte, s string) []byte {
	b = binary.LittleEndian.AppendUint16(b, uint16(len(s)))
	return append(b, s...)
}

// WriteRow appends one record: tick, value count, values, CRC.
func (w *Writer) WriteRow(t model.TimeStep, values []float64) error {
	b := w.buf[:0]
	b = binary.LittleEndian.AppendUint64(b, uint64(t))
	b = binary.LittleEndian.AppendUint32(b, uint32(len(values)))
	for _, v := range values {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
	}
	b = binary.LittleEndian.AppendUint16(b, crc16.Checksum(b, crcTable))
	w.buf = b
	_, err := w.w.Write(b)
	return err
}

// Close flushes buffered records and closes the file.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}

// Record is one decoded row.
type Record struct {
	Tick   model.TimeStep
	Values []float64
}

// Reader decodes a .dat file.
type Reader struct {
	r      *bufio.Reader
	Header Header
}

// NewReader reads the header from r.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	head := make([]byte, len(magic)+3)
	if _, err := io.ReadFull(br, head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHeader, err)
	}
	if string(head[:len(magic)]) != magic || binary.LittleEndian.Uint16(head[len(magic):]) != version {
		return nil, ErrHeader
	}
	rd := &Reader{r: br}
	rd.Header.Kind = activation.StreamKind(head[len(magic)+2])
	var err error
	if rd.Header.LoadType, err = readString(br); err != nil {
		return nil, err
	}
	if rd.Header.Unit, err = readString(br); err != nil {
		return nil, err
	}
	return rd, nil
}

func readString(r io.Reader) (string, error) {
	var n [2]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return "", fmt.Errorf("%w: %v", ErrHeader, err)
	}
	s := make([]byte, binary.LittleEndian.Uint16(n[:]))
	if _, err := io.ReadFull(r, s); err != nil {
		return "", fmt.Errorf("%w: %v", ErrHeader, err)
	}
	return string(s), nil
}

// Next returns the next record or io.EOF.
func (r *Reader) Next() (Record, error) {
	head := make([]byte, 12)
	if _, err := io.ReadFull(r.r, head); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, fmt.Errorf("datfile: truncated record: %w", err)
		}
		return Record{}, err
	}
	n := binary.LittleEndian.Uint32(head[8:])
	body := make([]byte, int(n)*8+2)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return Record{}, fmt.Errorf("datfile: truncated record: %w", err)
	}
	rec := append(head, body[:len(body)-2]...)
	if crc16.Checksum(rec, crcTable) != binary.LittleEndian.Uint16(body[len(body)-2:]) {
		return Record{}, ErrChecksum
	}
	out := Record{Tick: model.TimeStep(int64(binary.LittleEndian.Uint64(head))), Values: make([]float64, n)}
	for i := range out.Values {
		out.Values[i] = math.Float64frombits(binary.LittleEndian.Uint64(body[i*8:]))
	}
	return out, nil
}

// Factory opens streams below Dir. It implements activation.StreamFactory.
type Factory struct {
	Dir string
}

// NewFactory creates dir if needed.
func NewFactory(dir string) (*Factory, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Factory{Dir: dir}, nil
}

// Open creates the file named by spec.
func (f *Factory) Open(spec activation.StreamSpec) (activation.RowStream, error) {
	unit := spec.LoadType.UnitOfPower
	if spec.Kind == activation.StreamSum && spec.LoadType.UnitOfSum != "" {
		unit = spec.LoadType.UnitOfSum
	}
	w, err := Create(filepath.Join(f.Dir, spec.FileName), Header{Kind: spec.Kind, LoadType: spec.LoadType.Name, Unit: unit})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", spec.FileName, err)
	}
	return w, nil
}
