package supervisor

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/turtacn/Optibench/pkg/logger"
)

// Result is the outcome of a process that ran to completion.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Elapsed  time.Duration
}

// Success reports whether the process exited with status 0.
func (r Result) Success() bool { return r.ExitCode == 0 }

// Runner runs external tools synchronously.
type Runner interface {
	Run(command []string) (Result, error)
}

// ProcessManager handles the lifecycle of one external tool invocation.
// It manages starting and waiting for the process and captures its output.
type ProcessManager struct {
	cmd     *exec.Cmd
	stdout  bytes.Buffer
	stderr  bytes.Buffer
	started time.Time
}

// New creates a new ProcessManager instance.
func New() *ProcessManager {
	return &ProcessManager{}
}

// Start launches the process with the given command and extra environment.
// Standard output and error are captured for Wait.
func (pm *ProcessManager) Start(command []string, env []string) error {
	if len(command) == 0 {
		return fmt.Errorf("supervisor: empty command")
	}

	pm.cmd = exec.Command(command[0], command[1:]...)
	pm.cmd.Env = append(os.Environ(), env...)
	pm.cmd.Stdout = &pm.stdout
	pm.cmd.Stderr = &pm.stderr

	logger.Log.Debug("Supervisor: starting process", "cmd", command)
	pm.started = time.Now()
	return pm.cmd.Start()
}

// Wait blocks until the process exits. A non-zero exit is reported in
// Result.ExitCode, not as an error; the error is reserved for failures to
// observe the process at all.
func (pm *ProcessManager) Wait() (Result, error) {
	if pm.cmd == nil {
		return Result{}, fmt.Errorf("supervisor: process not started")
	}
	err := pm.cmd.Wait()
	res := Result{
		Stdout:  pm.stdout.Bytes(),
		Stderr:  pm.stderr.Bytes(),
		Elapsed: time.Since(pm.started),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case stderrors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		if res.ExitCode < 0 {
			// Killed by a signal.
			res.ExitCode = -1
		}
	default:
		return res, err
	}
	logger.Log.Debug("Supervisor: process exited", "pid", pm.cmd.Process.Pid, "code", res.ExitCode, "elapsed", res.Elapsed)
	return res, nil
}

// ExecRunner is the Runner backed by ProcessManager.
type ExecRunner struct{}

func (ExecRunner) Run(command []string) (Result, error) {
	pm := New()
	if err := pm.Start(command, nil); err != nil {
		return Result{}, err
	}
	return pm.Wait()
}

// Personal.AI order the ending
