// Package wavscp reads Kaldi-style wav.scp manifests.
//
// A manifest is a line-oriented text file mapping utterance IDs to audio
// file paths:
//
//	utt1 /data/audio/utt1.wav
//	utt2 /data/audio/utt2.wav extra fields are ignored
//
// Fields are separated by any run of whitespace. By default parsing is
// lenient: lines with fewer than two fields are skipped and a repeated
// utterance ID overwrites the earlier path while keeping the position of
// its first occurrence. [WithStrict] turns both cases into errors.
package wavscp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
)

// Sentinel errors returned in strict mode.
var (
	// ErrMalformedLine is returned for a non-empty line with fewer than two fields.
	ErrMalformedLine = errors.New("wavscp: malformed line")

	// ErrDuplicateID is returned when an utterance ID appears twice.
	ErrDuplicateID = errors.New("wavscp: duplicate utterance id")
)

// Entry is a single manifest line.
type Entry struct {
	ID   string
	Path string
}

// Manifest is an insertion-ordered mapping from utterance ID to audio path.
type Manifest struct {
	entries []Entry
	index   map[string]int
}

// Option configures parsing.
type Option func(*options)

type options struct {
	strict bool
}

// WithStrict enables strict parsing: malformed lines and duplicate IDs
// become errors instead of being skipped or overwritten.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// Load reads the manifest at path.
func Load(path string, opts ...Option) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavscp: %w", err)
	}
	defer f.Close()

	m, err := Parse(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return m, nil
}

// Parse reads a manifest from r.
func Parse(r io.Reader, opts ...Option) (*Manifest, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manifest{index: make(map[string]int)}
	sc := bufio.NewScanner(r)
	// Long pipe commands in wav.scp can exceed the default 64KB token size.
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			if o.strict && len(fields) > 0 {
				return nil, fmt.Errorf("%w at line %d", ErrMalformedLine, lineNo)
			}
			continue
		}
		id, path := fields[0], fields[1]
		if i, ok := m.index[id]; ok {
			if o.strict {
				return nil, fmt.Errorf("%w %q at line %d", ErrDuplicateID, id, lineNo)
			}
			m.entries[i].Path = path
			continue
		}
		m.index[id] = len(m.entries)
		m.entries = append(m.entries, Entry{ID: id, Path: path})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("wavscp: read: %w", err)
	}
	return m, nil
}

// Len returns the number of distinct utterances.
func (m *Manifest) Len() int {
	return len(m.entries)
}

// Get returns the audio path for id.
func (m *Manifest) Get(id string) (string, bool) {
	i, ok := m.index[id]
	if !ok {
		return "", false
	}
	return m.entries[i].Path, true
}

// Entries returns a copy of all entries in manifest order.
func (m *Manifest) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// All iterates (id, path) pairs in manifest order.
func (m *Manifest) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, e := range m.entries {
			if !yield(e.ID, e.Path) {
				return
			}
		}
	}
}
