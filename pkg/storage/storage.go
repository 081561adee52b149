// Package storage defines the FileStore interface for reading and writing
// files. It abstracts the underlying backend so model artifacts can come
// from local disk, an S3-compatible bucket, or a plain HTTP(S) host
// (including the Hugging Face hub) through the same code path.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// ErrReadOnly is returned by Write and Delete on stores that only serve files.
var ErrReadOnly = errors.New("storage: read-only store")

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading.
	// The caller must close the returned ReadCloser when done.
	// If the file does not exist, an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing.
	// If the file already exists it is replaced when the writer is closed.
	// The caller must close the returned WriteCloser to commit data.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file.
	// If the file does not exist, Delete returns nil (idempotent).
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// Aborter is implemented by writers that can discard everything written so
// far instead of committing it on Close.
type Aborter interface {
	Abort(err error) error
}

// CopyResult describes a completed [Copy].
type CopyResult struct {
	Size   int64
	SHA256 string
}

// Copy streams src:srcPath into dst:dstPath and hashes the bytes on the way.
// On failure the destination writer is aborted when it supports [Aborter],
// so a partial copy never replaces an existing file.
func Copy(ctx context.Context, dst FileStore, dstPath string, src FileStore, srcPath string) (CopyResult, error) {
	r, err := src.Read(ctx, srcPath)
	if err != nil {
		return CopyResult{}, err
	}
	defer r.Close()

	w, err := dst.Write(ctx, dstPath)
	if err != nil {
		return CopyResult{}, err
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, h), r)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if a, ok := w.(Aborter); ok {
			a.Abort(err)
		} else {
			w.Close()
		}
		return CopyResult{}, fmt.Errorf("storage: copy %s: %w", srcPath, err)
	}
	if err := w.Close(); err != nil {
		return CopyResult{}, fmt.Errorf("storage: commit %s: %w", dstPath, err)
	}
	return CopyResult{Size: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}
