// Package launcher starts the external collector executable and exposes
// its output stream and exit status. It never interprets the output
// itself; wiring stdout into the progress scanner is the coordinator's
// concern.
package launcher

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
)

// StartError reports an executable that could not be found or started.
type StartError struct {
	Path string
	Err  error
}

// Error formats launch failures for logs and UI.
func (e *StartError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("start collector %s: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *StartError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Handle owns one running collector process. The caller must drain
// Stdout to EOF before calling Wait; Wait reaps the process on every
// path. Termination by any means other than the process's own exit is
// out of scope, so cancellation would be added here without touching
// the scanner or the coordinator.
type Handle struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

// Stdout returns the process's standard output stream.
func (h *Handle) Stdout() io.Reader {
	return h.stdout
}

// Wait blocks until the process exits and returns its exit code. The
// error is non-nil only when the exit status itself could not be
// determined; a nonzero exit code is a normal return.
func (h *Handle) Wait() (int, error) {
	err := h.cmd.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Launcher spawns collector processes with an explicit working
// directory. The collector depends on resources co-located with its
// binary (its chromedriver and .env), so the working directory is
// always the executable's own directory.
type Launcher struct {
	logger *slog.Logger
}

// New creates a launcher logging through the given handler.
func New(logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{logger: logger}
}

// Start launches the executable with the given arguments, working
// directory, and extra environment entries layered over the current
// process environment. Fails with StartError when the binary is
// missing, not executable, or otherwise unstartable.
func (l *Launcher) Start(path string, args []string, workDir string, extraEnv []string) (*Handle, error) {
	cmd := exec.Command(path, args...)
	cmd.Dir = workDir
	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &StartError{Path: path, Err: err}
	}

	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		return nil, &StartError{Path: path, Err: err}
	}

	l.logger.Info("collector started",
		"path", path,
		"pid", cmd.Process.Pid,
		"workDir", workDir,
	)
	return &Handle{cmd: cmd, stdout: stdout}, nil
}
