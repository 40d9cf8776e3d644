package cli

import (
	"github.com/spf13/cobra"

	"github.com/teamcutter/vendr/internal/config"
	"github.com/teamcutter/vendr/internal/fetcher"
	"github.com/teamcutter/vendr/internal/gateway"
	"github.com/teamcutter/vendr/internal/identity"
	"github.com/teamcutter/vendr/internal/installer"
	"github.com/teamcutter/vendr/internal/manager"
	"github.com/teamcutter/vendr/internal/state"
)

func Execute() error {
	rootCmd := &cobra.Command{
		Use:           "vendr",
		Short:         "Install vendor-licensed packages on this machine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		newInstallCmd(),
		newAuditCmd(),
		newListCmd(),
		newRemoveCmd(),
		newVersionCmd(),
	)
	return rootCmd.Execute()
}

func newManager() (*manager.Manager, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	st, err := state.NewSQLite(cfg.StateFile, cfg.ManifestFile)
	if err != nil {
		return nil, nil, err
	}

	return manager.New(
		identity.New(),
		gateway.New(),
		fetcher.New(cfg.TmpDir),
		installer.New(),
		st), cfg, nil
}
