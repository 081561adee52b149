package kaldiio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
	"strconv"
	"strings"
)

// ScpEntry is one parsed index line.
type ScpEntry struct {
	Key    string
	Path   string
	Offset int64
}

// String formats the entry as an index line without the newline.
func (e ScpEntry) String() string {
	return e.Key + " " + e.Path + ":" + strconv.FormatInt(e.Offset, 10)
}

// ParseScpLine parses "<key> <path>:<offset>". The locator is split on the
// last ':' so paths containing colons survive. A locator without an offset
// refers to the start of the file.
func ParseScpLine(line string) (ScpEntry, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return ScpEntry{}, fmt.Errorf("%w: %q", ErrBadLocator, line)
	}
	e := ScpEntry{Key: fields[0], Path: fields[1]}
	i := strings.LastIndexByte(fields[1], ':')
	if i < 0 {
		return e, nil
	}
	off, err := strconv.ParseInt(fields[1][i+1:], 10, 64)
	if err != nil || off < 0 {
		return ScpEntry{}, fmt.Errorf("%w: %q", ErrBadLocator, line)
	}
	e.Path = fields[1][:i]
	e.Offset = off
	return e, nil
}

// ParseScp reads all entries from r. Blank lines are skipped.
func ParseScp(r io.Reader) ([]ScpEntry, error) {
	var entries []ScpEntry
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		e, err := ParseScpLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("kaldiio: read scp: %w", err)
	}
	return entries, nil
}

// ReadScp reads the index file at path.
func ReadScp(path string) ([]ScpEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("kaldiio: %w", err)
	}
	defer f.Close()
	return ParseScp(f)
}

// LoadVector opens path and decodes the vector stored at offset.
func LoadVector(path string, offset int64) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("kaldiio: %w", err)
	}
	defer f.Close()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("kaldiio: seek %s:%d: %w", path, offset, err)
	}
	return ReadVector(bufio.NewReader(f))
}

// Load decodes the vector referenced by e.
func (e ScpEntry) Load() ([]float32, error) {
	return LoadVector(e.Path, e.Offset)
}

// ReadVector decodes one binary vector object starting at "\x00B".
// Double-precision vectors are narrowed to float32.
func ReadVector(r io.Reader) ([]float32, error) {
	br := asByteReader(r)
	tok, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	return readVectorBody(br, tok)
}

// ReadMatrix decodes one binary matrix object starting at "\x00B".
func ReadMatrix(r io.Reader) (*Matrix, error) {
	br := asByteReader(r)
	tok, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	return readMatrixBody(br, tok)
}

// ReadArk iterates every record of an archive in file order. Iteration
// stops after the first error.
func ReadArk(r io.Reader) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		cr := &countingReader{r: bufio.NewReader(r)}
		for {
			key, err := cr.readToken()
			if err == io.EOF && key == "" {
				return
			}
			if err != nil {
				yield(Record{}, fmt.Errorf("kaldiio: read key: %w", err))
				return
			}
			rec := Record{Key: key, Offset: cr.n}
			tok, err := readHeader(cr)
			if err != nil {
				yield(Record{}, fmt.Errorf("%w (key %q)", err, key))
				return
			}
			switch tok {
			case tokenFloatVector, tokenDoubleVector:
				rec.Vector, err = readVectorBody(cr, tok)
			case tokenFloatMatrix, tokenDoubleMatrix:
				rec.Matrix, err = readMatrixBody(cr, tok)
			default:
				err = fmt.Errorf("%w %q", ErrUnsupportedToken, tok)
			}
			if err != nil {
				yield(Record{}, fmt.Errorf("%w (key %q)", err, key))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

type byteReader interface {
	io.Reader
	io.ByteReader
}

func asByteReader(r io.Reader) byteReader {
	if br, ok := r.(byteReader); ok {
		return br
	}
	return bufio.NewReader(r)
}

// readHeader consumes "\x00B" and the object token, returning the token
// without its trailing space.
func readHeader(r byteReader) (string, error) {
	var marker [2]byte
	if _, err := io.ReadFull(r, marker[:]); err != nil {
		return "", fmt.Errorf("kaldiio: read header: %w", err)
	}
	if string(marker[:]) != binaryMarker {
		return "", ErrBadHeader
	}
	var sb strings.Builder
	for {
		c, err := r.ReadByte()
		if err != nil {
			return "", fmt.Errorf("kaldiio: read token: %w", err)
		}
		if c == ' ' {
			break
		}
		sb.WriteByte(c)
		if sb.Len() > 16 {
			return "", fmt.Errorf("%w %q", ErrUnsupportedToken, sb.String())
		}
	}
	return sb.String(), nil
}

func readInt32(r io.Reader) (int, error) {
	var buf [5]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("kaldiio: read size: %w", err)
	}
	if buf[0] != sizeMarker {
		return 0, fmt.Errorf("kaldiio: unexpected size marker %d", buf[0])
	}
	n := int32(binary.LittleEndian.Uint32(buf[1:]))
	if n < 0 {
		return 0, fmt.Errorf("kaldiio: negative size %d", n)
	}
	return int(n), nil
}

func readFloats(r io.Reader, n int, double bool) ([]float32, error) {
	width := 4
	if double {
		width = 8
	}
	raw := make([]byte, n*width)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("kaldiio: read data: %w", err)
	}
	out := make([]float32, n)
	for i := range out {
		if double {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:])))
		} else {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	}
	return out, nil
}

func readVectorBody(r io.Reader, tok string) ([]float32, error) {
	if tok != tokenFloatVector && tok != tokenDoubleVector {
		return nil, fmt.Errorf("%w %q, want vector", ErrUnsupportedToken, tok)
	}
	n, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	return readFloats(r, n, tok == tokenDoubleVector)
}

func readMatrixBody(r io.Reader, tok string) (*Matrix, error) {
	if tok != tokenFloatMatrix && tok != tokenDoubleMatrix {
		return nil, fmt.Errorf("%w %q, want matrix", ErrUnsupportedToken, tok)
	}
	rows, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	cols, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	data, err := readFloats(r, rows*cols, tok == tokenDoubleMatrix)
	if err != nil {
		return nil, err
	}
	return &Matrix{Rows: rows, Cols: cols, Data: data}, nil
}

// countingReader tracks the absolute archive position for offsets.
type countingReader struct {
	r *bufio.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}

// readToken reads a key terminated by a single space. Leading newlines are
// tolerated between records.
func (c *countingReader) readToken() (string, error) {
	var sb strings.Builder
	for {
		b, err := c.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && sb.Len() > 0 {
				return sb.String(), io.ErrUnexpectedEOF
			}
			return sb.String(), err
		}
		switch b {
		case ' ':
			if sb.Len() == 0 {
				return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
			}
			return sb.String(), nil
		case '\n', '\r':
			if sb.Len() == 0 {
				continue
			}
			return "", fmt.Errorf("%w: newline in key", ErrInvalidKey)
		}
		sb.WriteByte(b)
	}
}
