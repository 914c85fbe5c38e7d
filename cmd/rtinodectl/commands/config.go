package commands

import (
	"fmt"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v3"

	"github.com/openrti/rtinode/internal/config"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Work with rtinode configuration files",
}

var configShowCmd = &cobra.Command{
	Use:   "show [file-or-literal-xml]",
	Short: "Render the merged configuration",
	Long: `Load a server config the way rtinode would (defaults, then the file
or literal XML, then RTINODE_* environment variables) and print the
merged result, for checking what a node will actually run with.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := ""
		if len(args) == 1 {
			source = args[0]
		}
		cfg, err := config.Load(source)
		if err != nil {
			return err
		}

		var out []byte
		switch configFormat {
		case "yaml":
			out, err = yaml.Marshal(cfg)
		case "toml":
			out, err = toml.Marshal(cfg)
		default:
			return fmt.Errorf("unknown format %q (yaml or toml)", configFormat)
		}
		if err != nil {
			return err
		}
		cmd.Print(string(out))
		return nil
	},
}

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "output format: yaml or toml")
	configCmd.AddCommand(configShowCmd)
}
