// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package common

import (
	"github.com/juju/errors"
)

// Conf is responsible for defining services. Its fields
// represent elements of a service configuration.
type Conf struct {
	// Desc is the service's description.
	Desc string

	// ExecStart is the command (with arguments) that will be run.
	// The command will be restarted if it exits with a non-zero exit code.
	ExecStart string

	// Env holds the environment variables that will be set when the
	// command runs.
	Env map[string]string

	// Limit holds the ulimit values that will be set when the command runs.
	Limit map[string]string

	// User and Group, if set, are the account the command runs as.
	User  string
	Group string

	// Dir, if set, is the working directory of the command.
	Dir string

	// Logfile, if set, receives the command's output.
	Logfile string

	// PreStart is a shell script run before the command starts.
	PreStart string

	// Manual leaves the service stopped at boot; the charm starts it
	// once its configuration is complete.
	Manual bool
}

// Validate returns an error if the conf is not adequately defined.
func (c Conf) Validate() error {
	if c.Desc == "" {
		return errors.New("missing Desc")
	}
	if c.ExecStart == "" {
		return errors.New("missing ExecStart")
	}
	if c.Group != "" && c.User == "" {
		return errors.New("Group set without User")
	}
	return nil
}
