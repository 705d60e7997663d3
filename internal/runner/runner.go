// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package runner runs the external commands hooks depend on: package
// managers, init system tools, hook tools and migrations.
package runner

import (
	"fmt"
	"os"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/utils/v4/exec"
	"github.com/kballard/go-shellquote"
)

var logger = loggo.GetLogger("cfcharm.runner")

// Command describes a single child process.
type Command struct {
	// Args holds the program and its arguments.
	Args []string

	// Dir is the working directory; empty means the current one.
	Dir string

	// Env holds extra NAME=value pairs added to the inherited
	// environment.
	Env []string

	// Quiet suppresses debug logging of the command line and output.
	Quiet bool
}

// String returns the command line as a shell would see it.
func (c Command) String() string {
	return shellquote.Join(c.Args...)
}

// Runner runs commands synchronously.
type Runner interface {
	// Run runs cmd and returns its standard output. A non-zero exit
	// status is reported as an *ExitError.
	Run(cmd Command) (string, error)
}

// Run runs args with r.
func Run(r Runner, args ...string) (string, error) {
	return r.Run(Command{Args: args})
}

// RunAllowFail runs args with r and reports a non-zero exit status as
// its code instead of an error.
func RunAllowFail(r Runner, args ...string) (string, int, error) {
	out, err := r.Run(Command{Args: args})
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return out, exitErr.Code, nil
	} else if err != nil {
		return "", 0, errors.Trace(err)
	}
	return out, 0, nil
}

// ExitError is returned when a command exits with a non-zero status.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", e.Command, e.Code)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// IsExitCode reports whether err is an *ExitError with the given code.
func IsExitCode(err error, code int) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Code == code
}

// ExecRunner runs commands through a shell on the local host.
type ExecRunner struct{}

// NewExecRunner returns a Runner for the local host.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run implements Runner.
func (*ExecRunner) Run(cmd Command) (string, error) {
	if len(cmd.Args) == 0 {
		return "", errors.NotValidf("empty command")
	}
	line := cmd.String()
	if !cmd.Quiet {
		logger.Debugf("running %s", line)
	}
	params := exec.RunParams{
		Commands:   line,
		WorkingDir: cmd.Dir,
	}
	if len(cmd.Env) > 0 {
		params.Environment = append(os.Environ(), cmd.Env...)
	}
	result, err := exec.RunCommands(params)
	if err != nil {
		return "", errors.Annotatef(err, "running %s", line)
	}
	stdout := string(result.Stdout)
	if !cmd.Quiet && stdout != "" {
		logger.Tracef("%s: %s", cmd.Args[0], stdout)
	}
	if result.Code != 0 {
		return stdout, &ExitError{
			Command: line,
			Code:    result.Code,
			Stderr:  string(result.Stderr),
		}
	}
	return stdout, nil
}
