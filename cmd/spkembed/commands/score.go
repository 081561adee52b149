package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/spkembed/pkg/kaldiio"
	"github.com/haivivi/spkembed/pkg/speaker"
)

var scoreTrials string

// trialScore is the cosine similarity of one enrollment/test pair.
type trialScore struct {
	Enroll string  `json:"enroll" yaml:"enroll"`
	Test   string  `json:"test" yaml:"test"`
	Score  float64 `json:"score" yaml:"score"`
	Label  string  `json:"label,omitempty" yaml:"label,omitempty"`
}

var scoreCmd = &cobra.Command{
	Use:   "score <file.scp> [<utt_a> <utt_b>]",
	Short: "Cosine-score embedding pairs",
	Long: `Score pairs of utterances by the cosine similarity of their embeddings.

Either name two utterance IDs, or pass --trials with a file of
"<enroll> <test> [label]" lines.

Examples:
  spkembed score exp/test/spk_embed.scp utt1 utt2
  spkembed score exp/test/spk_embed.scp --trials trials.txt --json`,
	Args: func(cmd *cobra.Command, args []string) error {
		if scoreTrials != "" {
			return cobra.ExactArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(3)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := kaldiio.ReadScp(args[0])
		if err != nil {
			return err
		}
		index := make(map[string]kaldiio.ScpEntry, len(entries))
		for _, e := range entries {
			index[e.Key] = e
		}

		var trials []trialScore
		if scoreTrials != "" {
			trials, err = readTrials(scoreTrials)
			if err != nil {
				return err
			}
		} else {
			trials = []trialScore{{Enroll: args[1], Test: args[2]}}
		}

		cache := make(map[string][]float32)
		load := func(key string) ([]float32, error) {
			if v, ok := cache[key]; ok {
				return v, nil
			}
			e, ok := index[key]
			if !ok {
				return nil, fmt.Errorf("utterance %q not in %s", key, args[0])
			}
			v, err := e.Load()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			cache[key] = v
			return v, nil
		}

		for i := range trials {
			a, err := load(trials[i].Enroll)
			if err != nil {
				return err
			}
			b, err := load(trials[i].Test)
			if err != nil {
				return err
			}
			if len(a) != len(b) {
				return fmt.Errorf("%s and %s differ in dimension (%d vs %d)", trials[i].Enroll, trials[i].Test, len(a), len(b))
			}
			trials[i].Score = speaker.CosineSimilarity(a, b)
		}
		return outputResult(trials)
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreTrials, "trials", "", "trials file of \"<enroll> <test> [label]\" lines")
	addOutputFlags(scoreCmd)
}

func readTrials(path string) ([]trialScore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var trials []trialScore
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		switch len(fields) {
		case 0:
			continue
		case 2, 3:
		default:
			return nil, fmt.Errorf("%s line %d: want \"<enroll> <test> [label]\"", path, lineNo)
		}
		t := trialScore{Enroll: fields[0], Test: fields[1]}
		if len(fields) == 3 {
			t.Label = fields[2]
		}
		trials = append(trials, t)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(trials) == 0 {
		return nil, errors.New("no trials in " + path)
	}
	return trials, nil
}
