package supervisor

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr makes the kernel send SIGTERM to the child when the
// supervisor dies without running its shutdown path. The signal fires when
// the forking thread exits, so start keeps that thread locked for the
// child's lifetime.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGTERM}
}
