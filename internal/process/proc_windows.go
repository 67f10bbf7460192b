//go:build windows

package process

import (
	"os"
	"os/exec"
)

func configureProcess(cmd *exec.Cmd) {}

func terminateProcess(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func processAlive(p *os.Process) bool {
	return true
}

func exitSignal(state *os.ProcessState) string {
	return ""
}
