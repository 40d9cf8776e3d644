package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, err := newManager()
			if err != nil {
				return err
			}

			installed, err := mgr.ListInstalled()
			if err != nil {
				return err
			}

			if len(installed) == 0 {
				fmt.Printf("\n%s No packages installed\n", dim("○"))
				return nil
			}

			names := make([]string, 0, len(installed))
			for name := range installed {
				names = append(names, name)
			}
			sort.Strings(names)

			fmt.Println()
			for _, name := range names {
				pkg := installed[name]
				fmt.Printf("%s %s%s%s\n  %s %s\n",
					green("✓"), bold(pkg.Name), bold("-"), bold(pkg.Version),
					cyan("path:"), pkg.Path)
			}

			return nil
		},
	}
}
