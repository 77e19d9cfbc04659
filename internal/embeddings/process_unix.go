//go:build !windows

package embeddings

import (
	"os/exec"
	"syscall"
)

// configureDetached puts the child in its own session so it survives the
// parent process exiting and isn't killed by the parent's terminal
// signals.
func configureDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
