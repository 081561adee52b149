// Package kaldiio reads and writes Kaldi binary archives (.ark) and their
// script index files (.scp).
//
// # Archive layout
//
// Every record is the key, a single space, then a binary object:
//
//	<key> ' ' '\x00' 'B' <token> <payload>
//
// Supported tokens:
//
//	"FV " float32 vector: '\x04' <int32 dim> <dim float32>
//	"DV " float64 vector: '\x04' <int32 dim> <dim float64>
//	"FM " float32 matrix: '\x04' <int32 rows> '\x04' <int32 cols> <rows*cols float32>
//	"DM " float64 matrix: same as FM with float64 data
//
// All integers and floats are little-endian.
//
// # Script index
//
// The scp file has one line per record, pointing at the byte just after the
// key's trailing space (the '\x00' of the binary header):
//
//	utt1 exp/spk_embed.ark:5
//
// This matches the layout produced and consumed by Kaldi's copy-vector,
// ESPnet, and kaldiio, so the files are interchangeable with those tools.
package kaldiio

import "errors"

// Sentinel errors.
var (
	// ErrInvalidKey is returned for an empty key or one containing whitespace.
	ErrInvalidKey = errors.New("kaldiio: invalid key")

	// ErrDimensionMismatch is returned when a vector's length differs from
	// the first vector written to the same archive.
	ErrDimensionMismatch = errors.New("kaldiio: dimension mismatch")

	// ErrBadHeader is returned when the binary marker "\x00B" is missing.
	ErrBadHeader = errors.New("kaldiio: bad binary header")

	// ErrUnsupportedToken is returned for object types this package cannot decode.
	ErrUnsupportedToken = errors.New("kaldiio: unsupported token")

	// ErrBadLocator is returned for malformed scp lines.
	ErrBadLocator = errors.New("kaldiio: bad scp locator")
)

const (
	binaryMarker = "\x00B"
	sizeMarker   = 4 // sizeof(int32), written before every int32 in binary mode

	tokenFloatVector  = "FV"
	tokenDoubleVector = "DV"
	tokenFloatMatrix  = "FM"
	tokenDoubleMatrix = "DM"
)

// Matrix is a dense row-major matrix.
type Matrix struct {
	Rows int
	Cols int
	Data []float32
}

// Row returns row i as a sub-slice of Data.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// Record is one archive entry as returned by [ReadArk].
// Exactly one of Vector and Matrix is set.
type Record struct {
	Key    string
	Offset int64
	Vector []float32
	Matrix *Matrix
}

// Dim returns the vector length, or the column count for matrices.
func (r Record) Dim() int {
	if r.Matrix != nil {
		return r.Matrix.Cols
	}
	return len(r.Vector)
}

func validKey(key string) bool {
	if key == "" {
		return false
	}
	for _, c := range key {
		switch c {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			return false
		}
	}
	return true
}
