// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package hookenv gives hooks access to the unit's configuration,
// relation data, ports, status and log through the agent's hook tools.
package hookenv

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/naturalsort"

	"github.com/juju/cf-charms/internal/runner"
)

// Status is a workload status value accepted by status-set.
type Status string

const (
	Maintenance Status = "maintenance"
	Blocked     Status = "blocked"
	Waiting     Status = "waiting"
	Active      Status = "active"
)

// Environment is the set of hook tools the charms use.
type Environment interface {
	// Config returns the unit's current configuration settings.
	Config() (map[string]any, error)

	// RelationIDs returns the ids of the established relations called
	// name, e.g. ["nats:1"].
	RelationIDs(name string) ([]string, error)

	// RelationUnits returns the remote units in relationID.
	RelationUnits(relationID string) ([]string, error)

	// RelationGet returns the settings unit published in relationID.
	RelationGet(relationID, unit string) (map[string]string, error)

	// PrivateAddress returns the private address of the local unit.
	PrivateAddress() (string, error)

	// OpenPort opens port for TCP traffic.
	OpenPort(port int) error

	// ClosePort closes port for TCP traffic.
	ClosePort(port int) error

	// Log writes msg to the agent's log for the unit.
	Log(level loggo.Level, msg string) error

	// SetStatus sets the workload status of the unit.
	SetStatus(status Status, msg string) error
}

// Tools implements Environment by running the hook tools the agent puts
// on the PATH of a hook.
type Tools struct {
	runner runner.Runner
}

// NewTools returns Tools that run hook tools with r.
func NewTools(r runner.Runner) *Tools {
	return &Tools{runner: r}
}

func (t *Tools) run(args ...string) (string, error) {
	out, err := runner.Run(t.runner, args...)
	return out, errors.Annotatef(err, "%s", args[0])
}

func (t *Tools) runJSON(result any, args ...string) error {
	out, err := t.run(append(args, "--format=json")...)
	if err != nil {
		return errors.Trace(err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(out), result); err != nil {
		return errors.Annotatef(err, "decoding %s output", args[0])
	}
	return nil
}

// Config implements Environment. Whole numbers are returned as int64, the
// way YAML-sourced settings are typed elsewhere.
func (t *Tools) Config() (map[string]any, error) {
	settings := map[string]any{}
	if err := t.runJSON(&settings, "config-get"); err != nil {
		return nil, errors.Trace(err)
	}
	for k, v := range settings {
		if f, ok := v.(float64); ok && f == math.Trunc(f) {
			settings[k] = int64(f)
		}
	}
	return settings, nil
}

// RelationIDs implements Environment.
func (t *Tools) RelationIDs(name string) ([]string, error) {
	var ids []string
	if err := t.runJSON(&ids, "relation-ids", name); err != nil {
		return nil, errors.Trace(err)
	}
	return naturalsort.Sort(ids), nil
}

// RelationUnits implements Environment.
func (t *Tools) RelationUnits(relationID string) ([]string, error) {
	var units []string
	if err := t.runJSON(&units, "relation-list", "-r", relationID); err != nil {
		return nil, errors.Trace(err)
	}
	return naturalsort.Sort(units), nil
}

// RelationGet implements Environment.
func (t *Tools) RelationGet(relationID, unit string) (map[string]string, error) {
	settings := map[string]string{}
	if err := t.runJSON(&settings, "relation-get", "-r", relationID, "-", unit); err != nil {
		return nil, errors.Trace(err)
	}
	return settings, nil
}

// PrivateAddress implements Environment.
func (t *Tools) PrivateAddress() (string, error) {
	var addr string
	if err := t.runJSON(&addr, "unit-get", "private-address"); err != nil {
		return "", errors.Trace(err)
	}
	return addr, nil
}

// OpenPort implements Environment.
func (t *Tools) OpenPort(port int) error {
	_, err := t.run("open-port", fmt.Sprintf("%d/tcp", port))
	return errors.Trace(err)
}

// ClosePort implements Environment.
func (t *Tools) ClosePort(port int) error {
	_, err := t.run("close-port", fmt.Sprintf("%d/tcp", port))
	return errors.Trace(err)
}

// Log implements Environment.
func (t *Tools) Log(level loggo.Level, msg string) error {
	_, err := t.runner.Run(runner.Command{
		Args:  []string{"juju-log", "-l", level.String(), msg},
		Quiet: true,
	})
	return errors.Trace(err)
}

// SetStatus implements Environment.
func (t *Tools) SetStatus(status Status, msg string) error {
	_, err := t.run("status-set", string(status), msg)
	return errors.Trace(err)
}

// MergedRelationSettings returns the settings published by every remote
// unit on every relation called name. When units disagree the unit that
// sorts last wins.
func MergedRelationSettings(env Environment, name string) (map[string]string, error) {
	merged := map[string]string{}
	ids, err := env.RelationIDs(name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	for _, id := range ids {
		units, err := env.RelationUnits(id)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, unit := range units {
			settings, err := env.RelationGet(id, unit)
			if err != nil {
				return nil, errors.Trace(err)
			}
			for k, v := range settings {
				merged[k] = v
			}
		}
	}
	return merged, nil
}
