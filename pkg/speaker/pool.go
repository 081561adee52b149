package speaker

import (
	"context"
	"fmt"
	"math"
)

// SegmentFunc runs the encoder on one [T][numMels] feature segment.
type SegmentFunc func(ctx context.Context, features [][]float32) ([]float32, error)

// PoolConfig controls how long utterances are split before inference.
type PoolConfig struct {
	// SegmentFrames is the window length in frames; 0 runs the encoder once
	// on the whole utterance.
	SegmentFrames int `yaml:"segment_frames"`

	// HopFrames is the stride between windows (default SegmentFrames/2).
	HopFrames int `yaml:"hop_frames"`

	// MinFrames rejects utterances shorter than this many frames.
	MinFrames int `yaml:"min_frames"`

	// Normalize L2-normalizes the final embedding.
	Normalize bool `yaml:"normalize"`
}

// Pool runs fn over features and returns the (averaged) embedding.
//
// With SegmentFrames set and a longer utterance, overlapping windows are
// embedded separately and averaged; the last window is aligned to the end
// of the utterance so the tail is always covered.
func Pool(ctx context.Context, features [][]float32, cfg PoolConfig, fn SegmentFunc) ([]float32, error) {
	minFrames := max(cfg.MinFrames, 1)
	if len(features) < minFrames {
		return nil, fmt.Errorf("%w: %d frames, need %d", ErrTooShort, len(features), minFrames)
	}

	seg := cfg.SegmentFrames
	if seg <= 0 || len(features) <= seg {
		emb, err := fn(ctx, features)
		if err != nil {
			return nil, err
		}
		if cfg.Normalize {
			L2Normalize(emb)
		}
		return emb, nil
	}

	hop := cfg.HopFrames
	if hop <= 0 {
		hop = max(seg/2, 1)
	}

	var starts []int
	for start := 0; start+seg <= len(features); start += hop {
		starts = append(starts, start)
	}
	if last := len(features) - seg; starts[len(starts)-1] != last {
		starts = append(starts, last)
	}

	var avg []float32
	for _, start := range starts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := fn(ctx, features[start:start+seg])
		if err != nil {
			return nil, err
		}
		if avg == nil {
			avg = make([]float32, len(emb))
		} else if len(emb) != len(avg) {
			return nil, fmt.Errorf("speaker: segment embedding size %d, want %d", len(emb), len(avg))
		}
		for i, v := range emb {
			avg[i] += v
		}
	}
	n := float32(len(starts))
	for i := range avg {
		avg[i] /= n
	}
	if cfg.Normalize {
		L2Normalize(avg)
	}
	return avg, nil
}

// L2Normalize scales v to unit length in place. Zero vectors are left as is.
func L2Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
