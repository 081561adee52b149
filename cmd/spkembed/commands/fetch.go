package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/spkembed/pkg/cli"
	"github.com/haivivi/spkembed/pkg/modelhub"
)

var (
	fetchMirror string
	fetchList   bool
)

// cachedModel is one cache index entry as printed by fetch --list.
type cachedModel struct {
	Source    string    `json:"source" yaml:"source"`
	File      string    `json:"file" yaml:"file"`
	Size      string    `json:"size" yaml:"size"`
	SHA256    string    `json:"sha256" yaml:"sha256"`
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the model into the cache directory",
	Long: `Resolve --source into --savedir without extracting anything.

With --mirror the resolved file is also uploaded to an s3:// location, so
later runs can use it as --source. With --list the cache index is printed
instead.

Examples:
  spkembed fetch --savedir models/resnet34
  spkembed fetch --source ./voxceleb_resnet34_LM.onnx --mirror s3://models/spk/
  spkembed fetch --list`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		settings, err := currentSettings()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if fetchList {
			hub, err := newHub(settings)
			if err != nil {
				return err
			}
			entries, err := hub.Cached(ctx)
			if err != nil {
				return err
			}
			out := make([]cachedModel, 0, len(entries))
			for _, e := range entries {
				out = append(out, cachedModel{
					Source:    e.Source,
					File:      e.File,
					Size:      cli.FormatBytes(e.Size),
					SHA256:    e.SHA256,
					FetchedAt: e.FetchedAt,
				})
			}
			return outputResult(out)
		}

		path, err := resolveModel(ctx, settings)
		if err != nil {
			return err
		}
		cli.PrintSuccess("Model ready: %s", path)

		if fetchMirror == "" {
			return nil
		}
		dst, err := modelhub.ParseSource(fetchMirror, settings.ModelFile)
		if err != nil {
			return err
		}
		hub, err := newHub(settings)
		if err != nil {
			return err
		}
		res, err := hub.Mirror(ctx, path, dst)
		if err != nil {
			return err
		}
		cli.PrintSuccess("Mirrored to s3://%s/%s (%s, sha256 %s)", dst.Bucket, dst.Key, cli.FormatBytes(res.Size), res.SHA256)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchMirror, "mirror", "", "also upload the model to this s3:// location")
	fetchCmd.Flags().BoolVar(&fetchList, "list", false, "list cached models instead of fetching")
	addOutputFlags(fetchCmd)
}
