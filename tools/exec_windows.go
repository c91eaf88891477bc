//go:build windows

package tools

import (
	"errors"
	"os"
	"os/exec"
)

func setupProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup kills the shell. Grandchildren are not tracked on windows.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
