package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// keys: manage the one-time prekey pool.
func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage one-time prekeys",
	}
	cmd.AddCommand(keysGenerateCmd(), keysListCmd(), keysConfirmCmd())
	return cmd
}

func keysGenerateCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate fresh one-time prekeys",
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := appCtx.Store.LoadAccount()
			if err != nil {
				return err
			}
			if err := appCtx.Keys.Generate(account, count); err != nil {
				return err
			}
			fmt.Printf("%d keys generated, %d pending upload\n", count, len(account.OneTimeKeys()))
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of keys to generate")
	return cmd
}

// list prints the unpublished keys as the JSON upload payload.
func keysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print unpublished keys as an upload payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := appCtx.Store.LoadAccount()
			if err != nil {
				return err
			}
			payload := struct {
				Identity any `json:"identity"`
				OneTime  any `json:"one_time_keys"`
			}{account.IdentityKeys(), appCtx.Keys.Unpublished(account)}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		},
	}
}

// confirm marks the offered keys as published after the server accepted the
// upload.
func keysConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm",
		Short: "Mark offered keys as published after upload confirmation",
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := appCtx.Store.LoadAccount()
			if err != nil {
				return err
			}
			n := len(account.OneTimeKeys())
			if err := appCtx.Keys.ConfirmPublished(account); err != nil {
				return err
			}
			fmt.Printf("%d keys marked published\n", n)
			return nil
		},
	}
}
