package commands

import (
	"testing"

	"github.com/google/uuid"
)

func TestExecute_ClosesStoreOnCommandError(t *testing.T) {
	// fingerprint fails without a provisioned account; the store must still
	// be released.
	err := execute([]string{"--home", t.TempDir(), "-p", "test-pass", "fingerprint"})
	if err == nil {
		t.Fatal("fingerprint without an account must fail")
	}
	if appCtx != nil {
		t.Fatal("store left open after a failed command")
	}
}

func TestExecute_ClosesStoreOnSuccess(t *testing.T) {
	args := []string{"--home", t.TempDir(), "-p", "test-pass", "init", "--user", uuid.NewString()}
	if err := execute(args); err != nil {
		t.Fatalf("init: %v", err)
	}
	if appCtx != nil {
		t.Fatal("store left open after a successful command")
	}
}
