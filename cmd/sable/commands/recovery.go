package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sable/internal/recovery"
)

// recovery: generate a recovery key for the user to write down.
func recoveryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recovery",
		Short: "Manage the recovery key",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Generate a recovery key and print it for safekeeping",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := recovery.Generate()
			if err != nil {
				return err
			}
			defer key.Destroy()

			// Shown once; never persisted in plaintext.
			fmt.Println("Write this recovery key down and store it safely:")
			fmt.Println()
			fmt.Printf("  %s\n", key)
			return nil
		},
	})
	return cmd
}
