package kaldiio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteVectorLayout(t *testing.T) {
	var ark, scp bytes.Buffer
	w := NewWriter(&ark, &scp, "out/spk_embed.ark")
	if err := w.WriteVector("a", []float32{1}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	want := []byte("a \x00BFV \x04\x01\x00\x00\x00\x00\x00\x80\x3f")
	if !bytes.Equal(ark.Bytes(), want) {
		t.Errorf("ark = %q, want %q", ark.Bytes(), want)
	}
	if got := scp.String(); got != "a out/spk_embed.ark:2\n" {
		t.Errorf("scp = %q", got)
	}
}

func TestWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	arkPath := filepath.Join(dir, "spk_embed.ark")
	scpPath := filepath.Join(dir, "spk_embed.scp")

	w, err := Create(arkPath, scpPath)
	if err != nil {
		t.Fatal(err)
	}
	vecs := map[string][]float32{
		"utt1": {0.5, -1.25, 3, 4},
		"utt2": {1e-7, float32(math.Pi), -0, 42},
		"utt3": {9, 8, 7, 6},
	}
	order := []string{"utt1", "utt2", "utt3"}
	for _, k := range order {
		if err := w.WriteVector(k, vecs[k]); err != nil {
			t.Fatalf("WriteVector(%s): %v", k, err)
		}
	}
	if w.Count() != 3 || w.Dim() != 4 {
		t.Errorf("Count() = %d, Dim() = %d", w.Count(), w.Dim())
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := ReadScp(scpPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(order) {
		t.Fatalf("got %d entries, want %d", len(entries), len(order))
	}

	raw, err := os.ReadFile(arkPath)
	if err != nil {
		t.Fatal(err)
	}
	for i, e := range entries {
		if e.Key != order[i] {
			t.Errorf("entry %d key = %s, want %s", i, e.Key, order[i])
		}
		if e.Path != arkPath {
			t.Errorf("entry %d path = %s, want %s", i, e.Path, arkPath)
		}
		if string(raw[e.Offset:e.Offset+2]) != binaryMarker {
			t.Errorf("offset %d of %s does not point at binary marker", e.Offset, e.Key)
		}
		got, err := e.Load()
		if err != nil {
			t.Fatalf("Load(%s): %v", e.Key, err)
		}
		assertVector(t, got, vecs[e.Key])
	}
}

func TestWriterRejects(t *testing.T) {
	var ark, scp bytes.Buffer
	w := NewWriter(&ark, &scp, "x.ark")
	if err := w.WriteVector("ok", []float32{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	arkLen, scpLen := ark.Len(), scp.Len()

	tests := []struct {
		name    string
		key     string
		vec     []float32
		wantErr error
	}{
		{"empty key", "", []float32{1, 2}, ErrInvalidKey},
		{"space in key", "a b", []float32{1, 2}, ErrInvalidKey},
		{"tab in key", "a\tb", []float32{1, 2}, ErrInvalidKey},
		{"dimension change", "bad", []float32{1, 2, 3}, ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.WriteVector(tt.key, tt.vec)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := w.WriteVector("empty", nil); err == nil {
		t.Error("expected error for empty vector")
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if ark.Len() != arkLen || scp.Len() != scpLen {
		t.Errorf("rejected writes changed output: ark %d->%d scp %d->%d", arkLen, ark.Len(), scpLen, scp.Len())
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriterErrorLeavesNoIndexLine(t *testing.T) {
	var scp bytes.Buffer
	w := NewWriter(failWriter{}, &scp, "x.ark")
	// Large enough to overflow the bufio buffer and hit the failing writer.
	big := make([]float32, 4096)
	err := w.WriteVector("utt1", big)
	if err == nil {
		t.Fatal("expected write error")
	}
	if err := w.WriteVector("utt2", big); err == nil {
		t.Fatal("expected sticky error")
	}
	w.Flush()
	if scp.Len() != 0 {
		t.Errorf("scp = %q, want empty", scp.String())
	}
	if w.Count() != 0 {
		t.Errorf("Count() = %d, want 0", w.Count())
	}
}

func TestParseScpLine(t *testing.T) {
	tests := []struct {
		line    string
		want    ScpEntry
		wantErr bool
	}{
		{line: "utt1 a.ark:12", want: ScpEntry{"utt1", "a.ark", 12}},
		{line: "utt1 C:/data/a.ark:7", want: ScpEntry{"utt1", "C:/data/a.ark", 7}},
		{line: "utt1 a.ark", want: ScpEntry{"utt1", "a.ark", 0}},
		{line: "utt1 a.ark:x", wantErr: true},
		{line: "utt1 a.ark:-3", wantErr: true},
		{line: "utt1", wantErr: true},
		{line: "utt1 a.ark:1 extra", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseScpLine(tt.line)
			if tt.wantErr {
				if !errors.Is(err, ErrBadLocator) {
					t.Fatalf("err = %v, want ErrBadLocator", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestReadArk(t *testing.T) {
	var ark, scp bytes.Buffer
	w := NewWriter(&ark, &scp, "x.ark")
	w.WriteVector("a", []float32{1, 2, 3})
	w.WriteVector("b", []float32{4, 5, 6})
	w.Flush()

	// Append a double matrix written by hand.
	ark.WriteString("m \x00BDM ")
	writeInt32(&ark, 2)
	writeInt32(&ark, 2)
	for _, v := range []float64{1, 2, 3, 4} {
		binary.Write(&ark, binary.LittleEndian, v)
	}

	entries, err := ParseScp(&scp)
	if err != nil {
		t.Fatal(err)
	}

	var recs []Record
	for rec, err := range ReadArk(bytes.NewReader(ark.Bytes())) {
		if err != nil {
			t.Fatal(err)
		}
		recs = append(recs, rec)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	for i, e := range entries {
		if recs[i].Key != e.Key || recs[i].Offset != e.Offset {
			t.Errorf("record %d = (%s, %d), scp has (%s, %d)", i, recs[i].Key, recs[i].Offset, e.Key, e.Offset)
		}
	}
	assertVector(t, recs[1].Vector, []float32{4, 5, 6})
	m := recs[2].Matrix
	if m == nil || m.Rows != 2 || m.Cols != 2 {
		t.Fatalf("matrix = %+v", m)
	}
	assertVector(t, m.Row(1), []float32{3, 4})
	if recs[2].Dim() != 2 {
		t.Errorf("Dim() = %d, want 2", recs[2].Dim())
	}
}

func TestReadArkTruncated(t *testing.T) {
	var ark, scp bytes.Buffer
	w := NewWriter(&ark, &scp, "x.ark")
	w.WriteVector("a", []float32{1, 2, 3})
	w.Flush()
	data := ark.Bytes()[:ark.Len()-2]

	var gotErr error
	for _, err := range ReadArk(bytes.NewReader(data)) {
		if err != nil {
			gotErr = err
		}
	}
	if gotErr == nil {
		t.Fatal("expected error for truncated archive")
	}
}

func TestReadVectorErrors(t *testing.T) {
	if _, err := ReadVector(strings.NewReader("XBFV ")); !errors.Is(err, ErrBadHeader) {
		t.Errorf("err = %v, want ErrBadHeader", err)
	}
	if _, err := ReadVector(strings.NewReader("\x00BCM \x04")); !errors.Is(err, ErrUnsupportedToken) {
		t.Errorf("err = %v, want ErrUnsupportedToken", err)
	}
}

func writeInt32(b *bytes.Buffer, n int32) {
	b.WriteByte(sizeMarker)
	binary.Write(b, binary.LittleEndian, n)
}

func assertVector(t *testing.T, got, want []float32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
