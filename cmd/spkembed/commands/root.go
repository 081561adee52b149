package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haivivi/spkembed/pkg/cli"
)

const appName = "spkembed"

var (
	// Global flags
	cfgFile     string
	profileName string
	logLevel    string
	outputFile  string
	outputJSON  bool

	// Model flags, layered over the selected profile
	modelFlags modelOptions

	// Global configuration
	globalConfig *cli.Config
)

// rootCmd runs extraction when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "spkembed --wav_scp <file> --out_dir <dir>",
	Short: "Extract speaker embeddings into Kaldi ark/scp",
	Long: `spkembed - speaker embedding extraction.

Reads a Kaldi wav.scp manifest ("<utt_id> <audio_path>" per line), runs a
pretrained speaker encoder on every utterance in order, and writes

  <out_dir>/spk_embed.ark   binary float vectors
  <out_dir>/spk_embed.scp   "<utt_id> <out_dir>/spk_embed.ark:<offset>"

The model is fetched once into --savedir from --source, which may be a
local .onnx file, an s3:// object, an http(s) URL, or a Hugging Face
repository ("org/repo" or "org/repo/path/model.onnx").

The first failing utterance aborts the run unless --continue_on_error is
set, in which case failures are listed in <out_dir>/spk_embed.failed and
the exit status is still non-zero.

Examples:
  # Default WeSpeaker ResNet34 on the first GPU
  spkembed --wav_scp data/test/wav.scp --out_dir exp/test

  # CPU, strict manifest, a saved profile
  spkembed -p resnet34-cpu --device cpu --strict --wav_scp wav.scp --out_dir out
`,
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE:              runExtract,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "profile file (default is ~/.giztoy/spkembed/config.yaml)")
	pf.StringVarP(&profileName, "profile", "p", "", "model profile to use (default: current profile)")
	pf.StringVar(&logLevel, "log_level", "info", "log level: debug, info, warn, error")
	modelFlags.register(pf)

	f := rootCmd.Flags()
	f.StringVar(&extractFlags.wavScp, "wav_scp", "", "manifest of utterance IDs and audio paths (required)")
	f.StringVar(&extractFlags.outDir, "out_dir", "", "output directory, created if absent (required)")
	f.BoolVar(&extractFlags.strict, "strict", false, "reject malformed lines and duplicate IDs in the manifest")
	f.BoolVar(&extractFlags.continueOnError, "continue_on_error", false, "skip failing utterances and list them in spk_embed.failed")
	f.BoolVar(&extractFlags.quiet, "quiet", false, "do not print the run summary")

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(profileCmd)
}

// addOutputFlags registers -o and --json on commands that print documents.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
}

func setup(cmd *cobra.Command, _ []string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(logLevel))); err != nil {
		return fmt.Errorf("invalid --log_level %q", logLevel)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var err error
	globalConfig, err = cli.LoadConfigWithPath(appName, cfgFile)
	if err != nil {
		return fmt.Errorf("error initializing config: %w", err)
	}
	return nil
}

// getConfig returns the global configuration
func getConfig() *cli.Config {
	return globalConfig
}

// getProfile returns the profile selected by -p, else the current one.
func getProfile() (*cli.Profile, error) {
	cfg := getConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return cfg.ResolveProfile(profileName)
}

// outputResult outputs the result using cli package
func outputResult(result any) error {
	format := cli.FormatYAML
	if outputJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{
		Format: format,
		File:   outputFile,
	})
}
