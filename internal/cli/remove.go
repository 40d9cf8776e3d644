package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove an installed package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, err := newManager()
			if err != nil {
				return err
			}

			pkg, err := mgr.Remove(args[0])
			if err != nil {
				printError(err)
				return fmt.Errorf("remove failed")
			}

			fmt.Printf("%s removed %s%s%s\n", green("✓"), bold(pkg.Name), bold("-"), bold(pkg.Version))
			return nil
		},
	}
}
