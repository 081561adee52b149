// Package main provides the spkembed CLI tool.
//
// Usage:
//
//	spkembed --wav_scp data/wav.scp --out_dir exp/xvector [flags]
//	spkembed <command> [args]
//
// The root command extracts one speaker embedding per manifest entry and
// writes <out_dir>/spk_embed.ark and <out_dir>/spk_embed.scp.
//
// Commands:
//
//	show     - Print records of an scp or ark file
//	score    - Cosine similarity between stored embeddings
//	fetch    - Download the model into --savedir
//	profile  - Manage model profiles
//
// Configuration:
//
//	Model profiles live in ~/.giztoy/spkembed/config.yaml.
//	Use 'spkembed profile' commands to manage them.
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/spkembed/cmd/spkembed/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
