//go:build !windows

package workspace

import (
	"context"
	"os/exec"
	"syscall"
)

// shellCommand runs command through a login shell in its own process group
// so that a timeout kills every child it spawned.
func shellCommand(ctx context.Context, command string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "sh", "-lc", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	return cmd
}
