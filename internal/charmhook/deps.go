// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charmhook holds what every charm's hook handlers are given and
// the steps the charms share.
package charmhook

import (
	"os"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/juju/cf-charms/core/unitstate"
	"github.com/juju/cf-charms/hook"
	"github.com/juju/cf-charms/internal/charmconfig"
	"github.com/juju/cf-charms/internal/hookenv"
	"github.com/juju/cf-charms/internal/render"
	"github.com/juju/cf-charms/internal/runner"
	"github.com/juju/cf-charms/service/common"
)

var logger = loggo.GetLogger("cfcharm.charmhook")

// Services supervises the charm's upstart jobs.
type Services interface {
	Install(name string, conf common.Conf) error
	Running(name string) (bool, error)
	Start(name string) error
	Stop(name string) error
	Restart(name string) error
}

// Packager installs packages.
type Packager interface {
	AddSource(source, key string) error
	Update() error
	Install(pkgs ...string) error
}

// Host changes the machine's accounts and file system.
type Host interface {
	AddUser(name string) error
	MkdirAll(path, owner, group string, perm os.FileMode) error
	Chownr(path, owner, group string) error
	WriteFile(path string, data []byte, owner, group string, perm os.FileMode) error
	Exists(path string) bool
	RemoveSysVInit(name string) error
	Download(url, dest string) error
	ReplaceTree(src, dst string) error
	Symlink(target, link string) error
}

// Deps is everything a hook handler may use.
type Deps struct {
	Context  hook.Context
	State    *unitstate.Store
	Config   charmconfig.Config
	Env      hookenv.Environment
	Services Services
	Packages Packager
	Host     Host
	Runner   runner.Runner
	Files    render.FileWriter
}

// Validate returns an error if a dependency is missing.
func (d *Deps) Validate() error {
	switch {
	case d.State == nil:
		return errors.NotValidf("nil State")
	case d.Env == nil:
		return errors.NotValidf("nil Env")
	case d.Services == nil:
		return errors.NotValidf("nil Services")
	case d.Packages == nil:
		return errors.NotValidf("nil Packages")
	case d.Host == nil:
		return errors.NotValidf("nil Host")
	case d.Runner == nil:
		return errors.NotValidf("nil Runner")
	case d.Files == nil:
		return errors.NotValidf("nil Files")
	}
	return nil
}

// SetStatus reports the workload status. Failures are logged, not
// returned: status is advisory.
func (d *Deps) SetStatus(status hookenv.Status, msg string) {
	if err := d.Env.SetStatus(status, msg); err != nil {
		logger.Warningf("cannot set status %s %q: %v", status, msg, err)
	}
}
