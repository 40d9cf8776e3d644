package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teamcutter/vendr/internal/platform"
)

func newInstallCmd() *cobra.Command {
	var gatewayURL string

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Authorize this machine and install the licensed package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, cfg, err := newManager()
			if err != nil {
				return err
			}

			url := cfg.GatewayURL
			if gatewayURL != "" {
				url = gatewayURL
			}

			env, err := platform.Detect(cfg.LibPaths)
			if err != nil {
				printError(err)
				return fmt.Errorf("install failed")
			}

			result, err := mgr.Install(cmd.Context(), url, env)
			if err != nil {
				printError(err)
				return fmt.Errorf("install failed")
			}

			fmt.Println()
			fmt.Printf("%s %s%s%s\n  %s %s\n",
				green("✓"), bold(result.Package), bold("-"), bold(result.Version),
				cyan("path:"), result.Path)
			if result.Warning != "" {
				fmt.Printf("%s %s\n", yellow("!"), result.Warning)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&gatewayURL, "gateway", "", "License gateway URL (overrides config)")
	return cmd
}
