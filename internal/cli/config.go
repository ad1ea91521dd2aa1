// config.go implements the "askgate config" command for reading and writing
// the persisted defaults.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/askgate-dev/askgate/internal/config"
)

var (
	cfgTransport string
	cfgTimeout   int
	cfgAction    string
	cfgLanguage  string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the persisted defaults",
	Long: `Without flags, print the effective configuration as YAML. Flags
update the named fields and persist the result; invalid values are
rejected the same way the API rejects them.`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().StringVar(&cfgTransport, "transport", "", "Default surface: terminal or web")
	configCmd.Flags().IntVar(&cfgTimeout, "timeout", 0, "Default timeout in seconds")
	configCmd.Flags().StringVar(&cfgAction, "timeout-action", "", "Behavior on timeout: submit, cancel or reinvoke")
	configCmd.Flags().StringVar(&cfgLanguage, "language", "", "Display language: en or zh")
}

func runConfig(cmd *cobra.Command, args []string) error {
	store := config.NewStore(config.BaseDir())
	pol := store.LoadOrDefault()

	patch := config.Patch{}
	changed := false
	if cmd.Flags().Changed("transport") {
		patch.Transport = &cfgTransport
		changed = true
	}
	if cmd.Flags().Changed("timeout") {
		patch.TimeoutSeconds = &cfgTimeout
		changed = true
	}
	if cmd.Flags().Changed("timeout-action") {
		patch.TimeoutAction = &cfgAction
		changed = true
	}
	if cmd.Flags().Changed("language") {
		patch.Language = &cfgLanguage
		changed = true
	}

	if changed {
		pol = config.Merge(pol, patch)
		if err := store.Save(pol); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(pol)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}
