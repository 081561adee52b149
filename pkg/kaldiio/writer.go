package kaldiio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

// Writer appends float vectors to an archive and keeps the scp index in
// step with it. It is not safe for concurrent use.
type Writer struct {
	ark     *bufio.Writer
	scp     *bufio.Writer
	closers []io.Closer

	arkName string
	offset  int64
	dim     int
	count   int
	err     error
}

// Create creates (or truncates) arkPath and scpPath and returns a Writer
// whose index lines reference arkPath as given.
func Create(arkPath, scpPath string) (*Writer, error) {
	ark, err := os.Create(arkPath)
	if err != nil {
		return nil, fmt.Errorf("kaldiio: create ark: %w", err)
	}
	scp, err := os.Create(scpPath)
	if err != nil {
		ark.Close()
		return nil, fmt.Errorf("kaldiio: create scp: %w", err)
	}
	w := NewWriter(ark, scp, arkPath)
	w.closers = []io.Closer{ark, scp}
	return w, nil
}

// NewWriter returns a Writer over arbitrary streams. arkName is the path
// written into index lines. The caller owns ark and scp; Close only
// flushes them.
func NewWriter(ark, scp io.Writer, arkName string) *Writer {
	return &Writer{
		ark:     bufio.NewWriter(ark),
		scp:     bufio.NewWriter(scp),
		arkName: arkName,
	}
}

// WriteVector appends v under key. The index line is emitted only after
// the full record has been handed to the archive buffer, so an error never
// leaves an index entry pointing at a partial record.
func (w *Writer) WriteVector(key string, v []float32) error {
	if w.err != nil {
		return w.err
	}
	if !validKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if len(v) == 0 {
		return fmt.Errorf("kaldiio: empty vector for %q", key)
	}
	if w.dim == 0 {
		w.dim = len(v)
	} else if len(v) != w.dim {
		return fmt.Errorf("%w: %q has %d, archive has %d", ErrDimensionMismatch, key, len(v), w.dim)
	}

	n, err := w.ark.WriteString(key + " ")
	w.offset += int64(n)
	if err != nil {
		return w.fail(err)
	}
	start := w.offset

	rec := encodeFloatVector(v)
	n, err = w.ark.Write(rec)
	w.offset += int64(n)
	if err != nil {
		return w.fail(err)
	}

	line := key + " " + w.arkName + ":" + strconv.FormatInt(start, 10) + "\n"
	if _, err := w.scp.WriteString(line); err != nil {
		return w.fail(err)
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	return w.count
}

// Dim returns the dimensionality fixed by the first record, or 0.
func (w *Writer) Dim() int {
	return w.dim
}

// Flush pushes buffered data to the underlying writers, archive first.
func (w *Writer) Flush() error {
	if err := w.ark.Flush(); err != nil {
		return w.fail(err)
	}
	if err := w.scp.Flush(); err != nil {
		return w.fail(err)
	}
	return nil
}

// Close flushes and closes files opened by [Create].
func (w *Writer) Close() error {
	ferr := w.Flush()
	var cerr error
	for _, c := range w.closers {
		if err := c.Close(); err != nil && cerr == nil {
			cerr = err
		}
	}
	w.closers = nil
	if ferr != nil {
		return ferr
	}
	if cerr != nil {
		return fmt.Errorf("kaldiio: close: %w", cerr)
	}
	return nil
}

func (w *Writer) fail(err error) error {
	w.err = fmt.Errorf("kaldiio: write: %w", err)
	return w.err
}

// encodeFloatVector returns the binary object for v, starting at "\x00B".
func encodeFloatVector(v []float32) []byte {
	buf := make([]byte, 0, len(binaryMarker)+3+1+4+4*len(v))
	buf = append(buf, binaryMarker...)
	buf = append(buf, tokenFloatVector+" "...)
	buf = append(buf, sizeMarker)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(len(v))))
	for _, x := range v {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(x))
	}
	return buf
}
