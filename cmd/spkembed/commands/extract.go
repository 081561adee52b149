package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/spkembed/pkg/audio/wav"
	"github.com/haivivi/spkembed/pkg/cli"
	"github.com/haivivi/spkembed/pkg/extract"
	"github.com/haivivi/spkembed/pkg/wavscp"
)

var extractFlags struct {
	wavScp          string
	outDir          string
	strict          bool
	continueOnError bool
	quiet           bool
}

func runExtract(cmd *cobra.Command, _ []string) error {
	if extractFlags.wavScp == "" || extractFlags.outDir == "" {
		cmd.Usage()
		return errors.New("--wav_scp and --out_dir are required")
	}
	ctx := cmd.Context()

	manifest, err := wavscp.Load(extractFlags.wavScp, wavscp.WithStrict(extractFlags.strict))
	if err != nil {
		return err
	}

	settings, err := currentSettings()
	if err != nil {
		return err
	}
	model, err := loadModel(ctx, settings)
	if err != nil {
		return err
	}
	defer model.Close()

	rep, runErr := extract.Run(ctx, extract.Options{
		Manifest:        manifest,
		Loader:          wav.Loader{SampleRate: settings.Fbank.SampleRate},
		Embedder:        model,
		OutDir:          extractFlags.outDir,
		ContinueOnError: extractFlags.continueOnError,
	})
	if rep != nil && !extractFlags.quiet {
		printReport(rep)
	}
	return runErr
}

func printReport(rep *extract.Report) {
	fields := []cli.Field{
		{Label: "run", Value: rep.RunID},
		{Label: "written", Value: fmt.Sprintf("%s / %s", cli.FormatCount(rep.Written), cli.FormatCount(rep.Total))},
		{Label: "dim", Value: strconv.Itoa(rep.Dim)},
		{Label: "ark", Value: rep.ArkPath},
		{Label: "scp", Value: rep.ScpPath},
		{Label: "elapsed", Value: cli.FormatElapsed(rep.Elapsed)},
	}
	if rep.Failed > 0 {
		fields = append(fields,
			cli.Field{Label: "failed", Value: cli.FormatCount(rep.Failed)},
			cli.Field{Label: "failed list", Value: rep.FailedPath},
		)
	}
	fmt.Fprintln(os.Stderr, cli.Summary{
		Styles: cli.NewStyles(cli.DefaultTheme),
		Title:  "spkembed",
		Fields: fields,
	}.Render())
}
