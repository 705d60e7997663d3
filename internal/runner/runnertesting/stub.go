// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package runnertesting

import (
	"github.com/juju/testing"

	"github.com/juju/cf-charms/internal/runner"
)

type response struct {
	out string
	err error
}

// StubRunner is a runner.Runner that records commands instead of running
// them. Responses are keyed on the program name.
type StubRunner struct {
	testing.Stub

	// Effect, if set, is called with every command before its result
	// is returned.
	Effect func(cmd runner.Command)

	responses map[string]response
}

// NewStubRunner returns a StubRunner that succeeds with no output for
// every command.
func NewStubRunner() *StubRunner {
	return &StubRunner{responses: make(map[string]response)}
}

// Respond sets what running program returns.
func (r *StubRunner) Respond(program, out string, err error) {
	r.responses[program] = response{out: out, err: err}
}

// Run implements runner.Runner.
func (r *StubRunner) Run(cmd runner.Command) (string, error) {
	r.AddCall("Run", cmd)
	if r.Effect != nil {
		r.Effect(cmd)
	}
	if err := r.NextErr(); err != nil {
		return "", err
	}
	if len(cmd.Args) == 0 {
		return "", nil
	}
	resp := r.responses[cmd.Args[0]]
	return resp.out, resp.err
}

// Commands returns the command lines run so far.
func (r *StubRunner) Commands() []string {
	var lines []string
	for _, call := range r.Calls() {
		lines = append(lines, call.Args[0].(runner.Command).String())
	}
	return lines
}
