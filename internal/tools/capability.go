package tools

import (
	"context"
	"errors"
	"os/exec"
)

// Capability identifies one optional external tool.
type Capability struct {
	// Name is the human-readable capability name used in logs.
	Name string
	// Binary is the executable probed on PATH.
	Binary string
}

// Available reports whether the tool's binary can be found on PATH.
func (c Capability) Available() bool {
	_, err := exec.LookPath(c.Binary)

	return err == nil
}

// run invokes the tool and returns its combined output and exit code.
// A non-zero exit is not an error here; callers classify exit codes
// per capability.
func (c Capability) run(ctx context.Context, args ...string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, c.Binary, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return output, exitErr.ExitCode(), nil
		}

		return output, -1, err
	}

	return output, 0, nil
}
