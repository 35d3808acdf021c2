//go:build !linux

package supervisor

import "os/exec"

func setSysProcAttr(_ *exec.Cmd) {}
