package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sable/internal/recovery"
)

// backup: encrypt a snapshot of the account under a recovery key and write
// the upload payload to a file for the transport layer.
func backupCmd() *cobra.Command {
	var out string
	var keyStr string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create an encrypted key backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := appCtx.Store.LoadAccount()
			if err != nil {
				return err
			}

			var key *recovery.RecoveryKey
			if keyStr != "" {
				if key, err = recovery.Parse(keyStr); err != nil {
					return err
				}
			} else {
				if key, err = recovery.Generate(); err != nil {
					return err
				}
				fmt.Println("New recovery key (write it down, it is shown once):")
				fmt.Printf("  %s\n\n", key)
			}
			defer key.Destroy()

			b, err := appCtx.Backup.Create(account, key)
			if err != nil {
				return err
			}
			raw, err := json.MarshalIndent(b, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, raw, 0o600); err != nil {
				return err
			}
			fmt.Printf("Backup written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "backup.json", "output file")
	cmd.Flags().StringVarP(&keyStr, "key", "k", "", "existing recovery key (generated if empty)")
	return cmd
}
