package commands

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/spkembed/pkg/kaldiio"
)

var showValues bool

// vectorInfo is one record as printed by show.
type vectorInfo struct {
	Key    string    `json:"key" yaml:"key"`
	Offset int64     `json:"offset" yaml:"offset"`
	Dim    int       `json:"dim" yaml:"dim"`
	Norm   float64   `json:"norm" yaml:"norm"`
	Values []float32 `json:"values,omitempty" yaml:"values,omitempty,flow"`
}

var showCmd = &cobra.Command{
	Use:   "show <file.scp|file.ark>",
	Short: "Inspect an embedding archive",
	Long: `List the records of a Kaldi archive or script index.

An .scp argument is followed to each archive offset it names; anything else
is read sequentially as an archive.

Examples:
  spkembed show exp/test/spk_embed.scp
  spkembed show exp/test/spk_embed.ark --values --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := readVectors(args[0])
		if err != nil {
			return err
		}
		return outputResult(infos)
	},
}

func init() {
	showCmd.Flags().BoolVar(&showValues, "values", false, "include vector values")
	addOutputFlags(showCmd)
}

func readVectors(path string) ([]vectorInfo, error) {
	if strings.HasSuffix(path, ".scp") {
		entries, err := kaldiio.ReadScp(path)
		if err != nil {
			return nil, err
		}
		infos := make([]vectorInfo, 0, len(entries))
		for _, e := range entries {
			v, err := e.Load()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", e.Key, err)
			}
			infos = append(infos, newVectorInfo(e.Key, e.Offset, v))
		}
		return infos, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var infos []vectorInfo
	for rec, err := range kaldiio.ReadArk(f) {
		if err != nil {
			return nil, err
		}
		v := rec.Vector
		if rec.Matrix != nil {
			v = rec.Matrix.Data
		}
		info := newVectorInfo(rec.Key, rec.Offset, v)
		info.Dim = rec.Dim()
		infos = append(infos, info)
	}
	return infos, nil
}

func newVectorInfo(key string, offset int64, v []float32) vectorInfo {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	info := vectorInfo{Key: key, Offset: offset, Dim: len(v), Norm: math.Sqrt(sum)}
	if showValues {
		info.Values = v
	}
	return info
}
