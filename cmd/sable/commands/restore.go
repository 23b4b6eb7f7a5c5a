package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sable/internal/recovery"
)

// restore: decrypt a downloaded backup with the recovery key and install the
// account into this device's store.
func restoreCmd() *cobra.Command {
	var in string
	var keyStr string

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the account from an encrypted backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			var b recovery.EncryptedBackup
			if err := json.Unmarshal(raw, &b); err != nil {
				return err
			}

			key, err := recovery.Parse(keyStr)
			if err != nil {
				return err
			}
			defer key.Destroy()

			account, err := appCtx.Backup.Restore(&b, key)
			if err != nil {
				return err
			}
			ik := account.IdentityKeys()
			fmt.Printf("Account restored.\nEd25519: %s\nCurve25519: %s\n", ik.Ed25519, ik.Curve25519)
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "backup.json", "backup file")
	cmd.Flags().StringVarP(&keyStr, "key", "k", "", "recovery key")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
