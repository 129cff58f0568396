//go:build unix

package agent

import (
	"os/exec"
	"syscall"
)

// killProcessGroupOnCancel puts the agent in its own process group and
// SIGKILLs the whole group on cancellation, so helpers it spawned die too.
func killProcessGroupOnCancel(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
