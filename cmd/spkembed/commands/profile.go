package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/spkembed/pkg/cli"
)

var profileFrom string

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage model profiles",
	Long: `Manage named model profiles.

A profile stores model settings (source, savedir, device, tensor names,
fbank and pooling options) so they need not be repeated on every run.
Profiles are saved in ~/.giztoy/spkembed/config.yaml.

Examples:
  spkembed profile add resnet34-cpu --device cpu --threads 4
  spkembed profile add campplus --from campplus.yaml
  spkembed profile use resnet34-cpu
  spkembed profile list`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := getConfig()
		names := cfg.ListProfiles()
		if len(names) == 0 {
			cli.PrintInfo("No profiles. Use 'spkembed profile add <name>' to create one.")
			return nil
		}
		for _, name := range names {
			marker := "  "
			if name == cfg.CurrentProfile {
				marker = "* "
			}
			fmt.Println(marker + name)
		}
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a profile merged with defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := profileName
		if len(args) > 0 {
			name = args[0]
		}
		p, err := getConfig().ResolveProfile(name)
		if err != nil {
			return err
		}
		settings := modelFlags.merge(p)
		return outputResult(struct {
			Profile  *cli.Profile  `json:"profile" yaml:"profile"`
			Resolved modelSettings `json:"resolved" yaml:"resolved"`
		}{p.Masked(), settings})
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the current profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := getConfig().UseProfile(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Current profile: %s", args[0])
		return nil
	},
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create or replace a profile",
	Long: `Create or replace a profile from a YAML/JSON file and/or model flags.
Flags given on the command line override values from --from.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := &cli.Profile{}
		if profileFrom != "" {
			if err := cli.LoadFile(profileFrom, p); err != nil {
				return err
			}
		}
		applyModelFlags(p)

		cfg := getConfig()
		if err := cfg.AddProfile(args[0], p); err != nil {
			return err
		}
		if cfg.CurrentProfile == "" {
			if err := cfg.UseProfile(args[0]); err != nil {
				return err
			}
		}
		cli.PrintSuccess("Profile %q saved to %s", args[0], cfg.Path())
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := getConfig().DeleteProfile(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Profile %q deleted", args[0])
		return nil
	},
}

// applyModelFlags copies explicitly given model flags into p.
func applyModelFlags(p *cli.Profile) {
	fs := modelFlags.flags
	if fs == nil {
		return
	}
	if fs.Changed("source") {
		p.Source = modelFlags.source
	}
	if fs.Changed("savedir") {
		p.SaveDir = modelFlags.savedir
	}
	if fs.Changed("model_file") {
		p.ModelFile = modelFlags.modelFile
	}
	if fs.Changed("device") {
		p.Device = modelFlags.device
	}
	if fs.Changed("input_name") {
		p.Input = modelFlags.input
	}
	if fs.Changed("output_name") {
		p.Output = modelFlags.output
	}
	if fs.Changed("threads") {
		p.Threads = modelFlags.threads
	}
}

func init() {
	profileAddCmd.Flags().StringVar(&profileFrom, "from", "", "YAML or JSON profile file (- for stdin)")
	addOutputFlags(profileShowCmd)

	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileUseCmd)
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileDeleteCmd)
}
