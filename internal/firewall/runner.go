package firewall

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner abstracts subprocess execution so backends can be
// tested without touching the OS firewall.
type CommandRunner interface {
	// Run executes a command, capturing combined output. A non-zero
	// exit is an error carrying the captured output.
	Run(name string, args ...string) error
	// Output executes a command and returns its stdout. The child's
	// stderr is discarded, which keeps expected-to-fail probes quiet.
	Output(name string, args ...string) ([]byte, error)
}

// RealCommandRunner executes actual commands.
type RealCommandRunner struct{}

// DefaultCommandRunner is the runner backends use unless overridden.
var DefaultCommandRunner CommandRunner = &RealCommandRunner{}

func (r *RealCommandRunner) Run(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

func (r *RealCommandRunner) Output(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

// isExitError reports whether err means the command ran and returned a
// non-zero status, as opposed to failing to run at all.
func isExitError(err error) bool {
	var ee *exec.ExitError
	return errors.As(err, &ee)
}
