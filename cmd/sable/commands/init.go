package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// init: provision the local key store and create the device account.
func initCmd() *cobra.Command {
	var userID, deviceID string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Provision the key store and create the device account",
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			did := uuid.New()
			if deviceID != "" {
				if did, err = uuid.Parse(deviceID); err != nil {
					return fmt.Errorf("invalid --device: %w", err)
				}
			}

			account, err := appCtx.Provision.Initialize(uid, did)
			if err != nil {
				return err
			}
			ik := account.IdentityKeys()
			fmt.Printf("Account ready.\nDevice: %s\nEd25519: %s\nCurve25519: %s\n", did, ik.Ed25519, ik.Curve25519)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owning user ID (UUID)")
	cmd.Flags().StringVar(&deviceID, "device", "", "device ID (UUID, generated if empty)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
