package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teamcutter/vendr/internal/audit"
	"github.com/teamcutter/vendr/internal/config"
	"github.com/teamcutter/vendr/internal/state"
)

func newAuditCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report installed, missing and outdated required packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if len(cfg.Required) == 0 {
				fmt.Printf("\n%s No required packages configured\n", dim("○"))
				return nil
			}
			if len(cfg.LibPaths) == 0 {
				return fmt.Errorf("no library path configured")
			}

			st, err := state.NewSQLite(cfg.StateFile, cfg.ManifestFile)
			if err != nil {
				return err
			}
			defer st.Close()

			auditor := audit.New(st, cfg.LibPaths[0], cfg.MaxParallel)

			stop := withSpinner(cmd.Context(), "Auditing environment...")
			report, err := auditor.Run(cmd.Context(), cfg.Required)
			stop()
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(report)
			}

			fmt.Println()
			for _, name := range report.Installed {
				fmt.Printf("%s %s\n", green("✓"), name)
			}
			for _, entry := range report.Outdated {
				fmt.Printf("%s %s\n", yellow("!"), entry)
			}
			for _, name := range report.Missing {
				fmt.Printf("%s %s %s\n", red("✗"), name, dim("(missing)"))
			}

			if len(report.Missing) > 0 || len(report.Outdated) > 0 {
				fmt.Printf("\n%s run %s to install the licensed package\n",
					dim("→"), bold("vendr install"))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}
