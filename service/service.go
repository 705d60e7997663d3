// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package service

import (
	"github.com/juju/errors"

	"github.com/juju/cf-charms/internal/runner"
	"github.com/juju/cf-charms/service/common"
	"github.com/juju/cf-charms/service/upstart"
)

// Manager controls upstart jobs by name.
type Manager struct {
	initDir string
	runner  runner.Runner
	confs   map[string]common.Conf
}

// NewManager returns a Manager for jobs in initDir, run through r. An
// empty initDir means the system default.
func NewManager(initDir string, r runner.Runner) *Manager {
	return &Manager{
		initDir: initDir,
		runner:  r,
		confs:   make(map[string]common.Conf),
	}
}

func (m *Manager) service(name string) *upstart.Service {
	return upstart.NewService(name, m.confs[name], m.initDir, m.runner)
}

// Install writes the job definition for name.
func (m *Manager) Install(name string, conf common.Conf) error {
	m.confs[name] = conf
	return errors.Annotatef(m.service(name).Install(), "installing service %q", name)
}

// Running reports whether the job called name is running.
func (m *Manager) Running(name string) (bool, error) {
	running, err := m.service(name).Running()
	return running, errors.Annotatef(err, "checking service %q", name)
}

// Start starts name if it is not running.
func (m *Manager) Start(name string) error {
	return errors.Annotatef(m.service(name).Start(), "starting service %q", name)
}

// Stop stops name if it is running.
func (m *Manager) Stop(name string) error {
	return errors.Annotatef(m.service(name).Stop(), "stopping service %q", name)
}

// Restart restarts name, starting it if it was stopped.
func (m *Manager) Restart(name string) error {
	return errors.Annotatef(m.service(name).Restart(), "restarting service %q", name)
}

// Installed returns the jobs present in the init directory.
func (m *Manager) Installed() ([]string, error) {
	dir := m.initDir
	if dir == "" {
		dir = upstart.InitDir
	}
	return upstart.ListServices(dir)
}
