package modelhub

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/haivivi/spkembed/pkg/storage"
)

// Kind identifies where a model comes from.
type Kind int

const (
	KindLocal Kind = iota // a file on disk
	KindS3                // s3://bucket/key
	KindHTTP              // http(s)://...
	KindHub               // org/repo[/file] on the Hugging Face hub
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindS3:
		return "s3"
	case KindHTTP:
		return "http"
	case KindHub:
		return "hub"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Source is a parsed model identifier.
type Source struct {
	Raw  string
	Kind Kind

	Path   string // KindLocal
	Bucket string // KindS3
	Key    string // KindS3
	URL    string // KindHTTP
	Repo   string // KindHub, "org/repo"
	File   string // KindHub, path inside the repo
}

// FileName is the name the model gets inside the cache directory.
func (s Source) FileName() string {
	switch s.Kind {
	case KindLocal:
		return filepath.Base(s.Path)
	case KindS3:
		return path.Base(s.Key)
	case KindHTTP:
		u, err := url.Parse(s.URL)
		if err != nil || u.Path == "" || strings.HasSuffix(u.Path, "/") {
			return ""
		}
		return path.Base(u.Path)
	default:
		return path.Base(s.File)
	}
}

func (s Source) String() string {
	return s.Raw
}

// ParseSource interprets raw as one of:
//
//	/path/to/model.onnx              existing local file
//	s3://bucket/key                  S3 object (a trailing '/' appends defaultFile)
//	https://host/path/model.onnx     plain download
//	org/repo[/path/in/repo.onnx]     Hugging Face hub; defaultFile when no path
//
// Anything that looks like a filesystem path but does not exist is an error
// rather than a hub lookup.
func ParseSource(raw, defaultFile string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Source{}, fmt.Errorf("%w: empty", ErrBadSource)
	}
	src := Source{Raw: raw}

	if info, err := os.Stat(raw); err == nil {
		if info.IsDir() {
			p := filepath.Join(raw, defaultFile)
			if defaultFile == "" {
				return Source{}, fmt.Errorf("%w: %s is a directory", ErrBadSource, raw)
			}
			if _, err := os.Stat(p); err != nil {
				return Source{}, fmt.Errorf("%w: %w", ErrBadSource, err)
			}
			raw = p
		}
		abs, err := filepath.Abs(raw)
		if err != nil {
			return Source{}, err
		}
		src.Kind = KindLocal
		src.Path = abs
		return src, nil
	}

	switch {
	case strings.HasPrefix(raw, "s3://"):
		bucket, key, err := storage.ParseS3URL(raw)
		if err != nil {
			return Source{}, fmt.Errorf("%w: %w", ErrBadSource, err)
		}
		if key == "" || strings.HasSuffix(key, "/") {
			if defaultFile == "" {
				return Source{}, fmt.Errorf("%w: %s names no object", ErrBadSource, raw)
			}
			key += defaultFile
		}
		src.Kind, src.Bucket, src.Key = KindS3, bucket, key
		return src, nil
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		src.Kind, src.URL = KindHTTP, raw
		if src.FileName() == "" {
			return Source{}, fmt.Errorf("%w: %s names no file", ErrBadSource, raw)
		}
		return src, nil
	case strings.Contains(raw, "://"):
		return Source{}, fmt.Errorf("%w: unsupported scheme in %q", ErrBadSource, raw)
	case looksLikePath(raw):
		return Source{}, fmt.Errorf("%w: %s: %w", ErrBadSource, raw, fs.ErrNotExist)
	}

	parts := strings.Split(raw, "/")
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return Source{}, fmt.Errorf("%w: bad hub id %q", ErrBadSource, raw)
		}
	}
	if len(parts) < 2 {
		return Source{}, fmt.Errorf("%w: %q is neither a file nor org/repo", ErrBadSource, raw)
	}
	src.Kind = KindHub
	src.Repo = parts[0] + "/" + parts[1]
	src.File = strings.Join(parts[2:], "/")
	if src.File == "" {
		if defaultFile == "" {
			return Source{}, fmt.Errorf("%w: %s names no file", ErrBadSource, raw)
		}
		src.File = defaultFile
	}
	return src, nil
}

// looksLikePath reports whether raw is meant as a filesystem path. Hub ids
// need at least org/repo/file to end in ".onnx".
func looksLikePath(raw string) bool {
	switch raw[0] {
	case '/', '.', '~':
		return true
	}
	return strings.HasSuffix(raw, ".onnx") && strings.Count(raw, "/") < 2
}
