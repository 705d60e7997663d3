// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package logging

import "github.com/juju/loggo/v2"

// NewAgentWriter returns the writer Setup registers for the agent log.
func NewAgentWriter(agent AgentLogger) loggo.Writer {
	return &agentWriter{agent: agent}
}
