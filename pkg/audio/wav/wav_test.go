package wav

import (
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	in := &Audio{
		SampleRate: 8000,
		Channels:   2,
		Samples:    []int16{100, 300, -100, -300, 32767, -32768},
	}
	if err := WriteFile(path, in); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.SampleRate != 8000 || got.Channels != 2 {
		t.Fatalf("format = %d Hz x%d, want 8000 Hz x2", got.SampleRate, got.Channels)
	}
	if len(got.Samples) != len(in.Samples) {
		t.Fatalf("len = %d, want %d", len(got.Samples), len(in.Samples))
	}
	for i := range in.Samples {
		if got.Samples[i] != in.Samples[i] {
			t.Errorf("[%d] = %d, want %d", i, got.Samples[i], in.Samples[i])
		}
	}
	if got.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", got.Frames())
	}
}

func TestMono(t *testing.T) {
	a := &Audio{SampleRate: 16000, Channels: 2, Samples: []int16{100, 300, -100, -300}}
	m := a.Mono()
	if m.Channels != 1 || len(m.Samples) != 2 {
		t.Fatalf("mono = %+v", m)
	}
	if m.Samples[0] != 200 || m.Samples[1] != -200 {
		t.Errorf("samples = %v, want [200 -200]", m.Samples)
	}
}

func TestDuration(t *testing.T) {
	a := &Audio{SampleRate: 16000, Channels: 1, Samples: make([]int16, 8000)}
	if d := a.Duration(); d != 500*time.Millisecond {
		t.Errorf("Duration() = %v, want 500ms", d)
	}
}

func TestToInt16(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		in    []int
		want  []int16
	}{
		{"8 bit unsigned", 8, []int{128, 255, 0}, []int16{0, 127 << 8, -128 << 8}},
		{"16 bit", 16, []int{-5, 5}, []int16{-5, 5}},
		{"24 bit", 24, []int{0x7fffff, -0x800000}, []int16{32767, -32768}},
		{"32 bit", 32, []int{0x7fffffff, -0x80000000}, []int16{32767, -32768}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toInt16(tt.in, tt.depth)
			if err != nil {
				t.Fatal(err)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}

	if _, err := toInt16([]int{1}, 12); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestReadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadFile(filepath.Join(dir, "missing.wav"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing: err = %v, want fs.ErrNotExist", err)
	}

	junk := filepath.Join(dir, "junk.wav")
	if err := os.WriteFile(junk, []byte("this is not a wav file at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = ReadFile(junk)
	if !errors.Is(err, ErrInvalidWAV) {
		t.Errorf("junk: err = %v, want ErrInvalidWAV", err)
	}
}

func TestLoaderResamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	samples := make([]int16, 48000*2) // 1s stereo @ 48k
	for i := 0; i < 48000; i++ {
		v := int16(math.Sin(2*math.Pi*300*float64(i)/48000) * 12000)
		samples[i*2] = v
		samples[i*2+1] = v
	}
	if err := WriteFile(path, &Audio{SampleRate: 48000, Channels: 2, Samples: samples}); err != nil {
		t.Fatal(err)
	}

	pcm, err := Loader{SampleRate: 16000}.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	n := len(pcm) / 2
	if math.Abs(float64(n-16000)) > 160 {
		t.Errorf("got %d samples, want ~16000", n)
	}
}
