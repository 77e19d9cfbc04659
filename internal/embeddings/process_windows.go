//go:build windows

package embeddings

import "os/exec"

// configureDetached is a no-op on Windows; CREATE_NEW_PROCESS_GROUP would
// be the equivalent but isn't required for this process's lifetime needs
// since Windows doesn't tie child lifetime to the parent's session the
// way Unix does.
func configureDetached(cmd *exec.Cmd) {}
