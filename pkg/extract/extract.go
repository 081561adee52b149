// Package extract runs the embedding pipeline: for every manifest entry, in
// order, load the audio, embed it, and append the vector to a Kaldi archive.
//
// Outputs in OutDir:
//
//	spk_embed.ark     binary float vectors keyed by utterance ID
//	spk_embed.scp     "<utt> <out_dir>/spk_embed.ark:<offset>" per vector
//	spk_embed.failed  "<utt>\t<error>" per skipped utterance (ContinueOnError only)
//
// By default the first failure aborts the run. No index line is ever
// written for an utterance whose vector was not fully written.
package extract

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/spkembed/pkg/kaldiio"
	"github.com/haivivi/spkembed/pkg/wavscp"
)

// Output file names inside OutDir.
const (
	ArkName    = "spk_embed.ark"
	ScpName    = "spk_embed.scp"
	FailedName = "spk_embed.failed"
)

// ErrPartial is returned when ContinueOnError skipped at least one utterance.
var ErrPartial = errors.New("extract: some utterances failed")

// AudioLoader turns an audio path into PCM16 LE mono at the model rate.
type AudioLoader interface {
	Load(path string) ([]byte, error)
}

// Embedder is the subset of speaker.Model the pipeline needs.
type Embedder interface {
	Embed(ctx context.Context, pcm []byte) ([]float32, error)
}

// Options configures [Run].
type Options struct {
	Manifest *wavscp.Manifest
	Loader   AudioLoader
	Embedder Embedder
	OutDir   string

	// ContinueOnError logs and records failed utterances instead of
	// aborting; Run then returns ErrPartial.
	ContinueOnError bool

	// RunID tags log lines and the report; a random UUID when empty.
	RunID  string
	Logger *slog.Logger
}

// Report summarizes a run. It is returned even when Run fails.
type Report struct {
	RunID      string        `json:"run_id" yaml:"run_id"`
	Total      int           `json:"total" yaml:"total"`
	Written    int           `json:"written" yaml:"written"`
	Failed     int           `json:"failed" yaml:"failed"`
	Dim        int           `json:"dim" yaml:"dim"`
	ArkPath    string        `json:"ark" yaml:"ark"`
	ScpPath    string        `json:"scp" yaml:"scp"`
	FailedPath string        `json:"failed_list,omitempty" yaml:"failed_list,omitempty"`
	Elapsed    time.Duration `json:"elapsed" yaml:"elapsed"`
}

// UtteranceError wraps a per-utterance failure with its ID and stage.
type UtteranceError struct {
	ID    string
	Path  string
	Stage string // "load", "embed", or "write"
	Err   error
}

func (e *UtteranceError) Error() string {
	return fmt.Sprintf("extract: %s %s (%s): %v", e.Stage, e.ID, e.Path, e.Err)
}

func (e *UtteranceError) Unwrap() error {
	return e.Err
}

// Run processes every manifest entry sequentially and writes the archive
// and index into opts.OutDir. The writer is always closed, so vectors
// written before a failure remain readable.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Manifest == nil || opts.Loader == nil || opts.Embedder == nil {
		return nil, errors.New("extract: manifest, loader and embedder are required")
	}
	if opts.OutDir == "" {
		return nil, errors.New("extract: empty output directory")
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("run_id", runID)

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("extract: create output dir: %w", err)
	}
	rep := &Report{
		RunID:   runID,
		Total:   opts.Manifest.Len(),
		ArkPath: filepath.Join(opts.OutDir, ArkName),
		ScpPath: filepath.Join(opts.OutDir, ScpName),
	}
	start := time.Now()
	defer func() { rep.Elapsed = time.Since(start) }()

	w, err := kaldiio.Create(rep.ArkPath, rep.ScpPath)
	if err != nil {
		return rep, fmt.Errorf("extract: %w", err)
	}

	var failed []*UtteranceError
	runErr := func() error {
		i := 0
		for id, path := range opts.Manifest.All() {
			i++
			if err := ctx.Err(); err != nil {
				return err
			}
			err := process(ctx, opts, w, id, path)
			if err == nil {
				log.Debug("embedded", "utt", id, "n", i, "of", rep.Total)
				continue
			}
			var uerr *UtteranceError
			if !opts.ContinueOnError || !errors.As(err, &uerr) || uerr.Stage == "write" {
				return err
			}
			log.Warn("skipping utterance", "utt", id, "path", path, "stage", uerr.Stage, "error", uerr.Err)
			failed = append(failed, uerr)
		}
		return nil
	}()

	closeErr := w.Close()
	rep.Written = w.Count()
	rep.Dim = w.Dim()
	rep.Failed = len(failed)

	if runErr == nil && closeErr != nil {
		runErr = fmt.Errorf("extract: %w", closeErr)
	}
	if runErr != nil {
		log.Error("extraction aborted", "written", rep.Written, "error", runErr)
		return rep, runErr
	}

	if len(failed) > 0 {
		rep.FailedPath = filepath.Join(opts.OutDir, FailedName)
		if err := writeFailed(rep.FailedPath, failed); err != nil {
			return rep, err
		}
		log.Warn("extraction finished with failures", "written", rep.Written, "failed", rep.Failed, "list", rep.FailedPath)
		return rep, fmt.Errorf("%w: %d of %d, see %s", ErrPartial, rep.Failed, rep.Total, rep.FailedPath)
	}

	// A previous partial run may have left a stale list.
	os.Remove(filepath.Join(opts.OutDir, FailedName))
	log.Info("extraction finished", "written", rep.Written, "dim", rep.Dim, "ark", rep.ArkPath)
	return rep, nil
}

func process(ctx context.Context, opts Options, w *kaldiio.Writer, id, path string) error {
	pcm, err := opts.Loader.Load(path)
	if err != nil {
		return &UtteranceError{ID: id, Path: path, Stage: "load", Err: err}
	}
	emb, err := opts.Embedder.Embed(ctx, pcm)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &UtteranceError{ID: id, Path: path, Stage: "embed", Err: err}
	}
	if err := w.WriteVector(id, emb); err != nil {
		if errors.Is(err, kaldiio.ErrInvalidKey) || errors.Is(err, kaldiio.ErrDimensionMismatch) {
			// Nothing was written, so the archive is still consistent.
			return &UtteranceError{ID: id, Path: path, Stage: "embed", Err: err}
		}
		return &UtteranceError{ID: id, Path: path, Stage: "write", Err: err}
	}
	return nil
}

func writeFailed(path string, failed []*UtteranceError) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	bw := bufio.NewWriter(f)
	for _, e := range failed {
		msg := strings.ReplaceAll(e.Err.Error(), "\n", " ")
		fmt.Fprintf(bw, "%s\t%s: %s\n", e.ID, e.Stage, msg)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("extract: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	return nil
}
