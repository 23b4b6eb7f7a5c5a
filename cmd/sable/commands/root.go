package commands

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"sable/internal/app"
	"sable/internal/crypto"
)

var (
	home       string
	passphrase string
	appCtx     *app.Wire
)

const saltFile = "storage.salt"

func Execute() error {
	return execute(os.Args[1:])
}

func execute(args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	err := root.Execute()

	// cobra skips the PersistentPostRun hooks when a command fails, so the
	// store (and the storage key it holds) is released here on every exit
	// path instead.
	if appCtx != nil {
		cerr := appCtx.Close()
		appCtx = nil
		if err == nil {
			err = cerr
		}
	}
	return err
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sable",
		Short: "E2EE key management for the sable client",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".sable")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			salt, err := loadOrCreateSalt(filepath.Join(home, saltFile))
			if err != nil {
				return err
			}
			key := crypto.DeriveStorageKey(passphrase, salt)

			appCtx, err = app.NewWire(app.Config{
				DBPath:     filepath.Join(home, "keys.db"),
				StorageKey: &key,
			})
			crypto.Wipe(key[:])
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.sable)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the key store")

	root.AddCommand(initCmd(), fingerprintCmd(), keysCmd(), recoveryCmd(), backupCmd(), restoreCmd())
	return root
}

// loadOrCreateSalt returns the per-store KDF salt, creating it on first run.
func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil {
		if len(salt) != crypto.SaltBytes {
			return nil, fmt.Errorf("corrupt salt file %s", path)
		}
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	salt = make([]byte, crypto.SaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, err
	}
	return salt, nil
}
