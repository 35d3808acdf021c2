//go:build windows

package supervisor

import "os"

// Windows has no SIGTERM; the stop timeout never gets a chance to elapse.
func terminate(p *os.Process) error {
	return p.Kill()
}
