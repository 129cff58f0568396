//go:build !unix

package agent

import "os/exec"

func killProcessGroupOnCancel(cmd *exec.Cmd) {}
