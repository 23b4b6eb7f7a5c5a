package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sable/internal/crypto"
)

// fingerprint: short fingerprint of the device's encryption identity key.
func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Show the device identity key fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := appCtx.Store.LoadAccount()
			if err != nil {
				return err
			}
			key := account.Curve25519Key()
			fmt.Println(crypto.Fingerprint(key.Slice()))
			return nil
		},
	}
}
