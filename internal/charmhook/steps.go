// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charmhook

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/juju/errors"

	"github.com/juju/cf-charms/internal/hookenv"
	"github.com/juju/cf-charms/internal/runner"
	"github.com/juju/cf-charms/service/common"
)

const (
	// User and Group own the Cloud Foundry trees and run its daemons.
	User  = "vcap"
	Group = "vcap"

	// CFDir is where the Cloud Foundry packages install.
	CFDir = "/var/lib/cloudfoundry"

	// VcapDir holds run, log and data directories.
	VcapDir = "/var/vcap"

	// DirPerm is the mode of directories created for the daemons.
	DirPerm os.FileMode = 0775
)

// NATS relation settings recorded in unit state.
const (
	NATSAddress  = "nats_address"
	NATSPort     = "nats_port"
	NATSUser     = "nats_user"
	NATSPassword = "nats_password"
)

// NATSKeys lists the NATS settings a router-registering component needs.
var NATSKeys = []string{NATSAddress, NATSPort, NATSUser, NATSPassword}

// ExecdPreinstall runs each executable exec.d/*/charm-pre-install in the
// charm directory, in lexical order, from its own directory.
func ExecdPreinstall(d *Deps) error {
	scripts, err := filepath.Glob(filepath.Join(d.Context.CharmDir, "exec.d", "*", "charm-pre-install"))
	if err != nil {
		return errors.Trace(err)
	}
	for _, script := range scripts {
		info, err := os.Stat(script)
		if err != nil {
			return errors.Trace(err)
		}
		if !info.Mode().IsRegular() || info.Mode().Perm()&0111 == 0 {
			logger.Debugf("skipping %s: not an executable file", script)
			continue
		}
		logger.Infof("running %s", script)
		if _, err := d.Runner.Run(runner.Command{
			Args: []string{script},
			Dir:  filepath.Dir(script),
		}); err != nil {
			return errors.Annotatef(err, "running %s", script)
		}
	}
	return nil
}

// InstallPackages adds the apt source configured in the "source" and
// "key" options, refreshes the index and installs pkgs.
func InstallPackages(d *Deps, pkgs ...string) error {
	d.SetStatus(hookenv.Maintenance, "installing packages")
	if err := d.Packages.AddSource(d.Config.String("source"), d.Config.String("key")); err != nil {
		return errors.Trace(err)
	}
	if err := d.Packages.Update(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(d.Packages.Install(pkgs...))
}

// MakeDirs creates dirs owned by User.
func MakeDirs(d *Deps, dirs ...string) error {
	for _, dir := range dirs {
		if err := d.Host.MkdirAll(dir, User, Group, DirPerm); err != nil {
			return errors.Annotatef(err, "creating %q", dir)
		}
	}
	return nil
}

// ChownTrees hands the Cloud Foundry trees over to User.
func ChownTrees(d *Deps) error {
	for _, dir := range []string{VcapDir, CFDir} {
		if err := d.Host.Chownr(dir, User, Group); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Job is an upstart job a charm installs.
type Job struct {
	Name string
	Conf common.Conf
}

// InstallJobs installs jobs.
func InstallJobs(d *Deps, jobs ...Job) error {
	for _, job := range jobs {
		if err := d.Services.Install(job.Name, job.Conf); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// StartAll starts each named service that is not running, in order.
func StartAll(d *Deps, names ...string) error {
	for _, name := range names {
		if err := d.Services.Start(name); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// StopAll stops each named service that is running, in order.
func StopAll(d *Deps, names ...string) error {
	for _, name := range names {
		if err := d.Services.Stop(name); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// RestartIfRunning restarts the named service only if it is running.
func RestartIfRunning(d *Deps, name string) error {
	running, err := d.Services.Running(name)
	if err != nil {
		return errors.Trace(err)
	}
	if !running {
		return nil
	}
	return errors.Trace(d.Services.Restart(name))
}

// RecordNATS copies the NATS settings published on every "nats" relation
// into unit state. Settings a remote unit has not published yet are left
// as they were. It reports whether every NATS setting is now known.
func RecordNATS(d *Deps) (bool, error) {
	settings, err := hookenv.MergedRelationSettings(d.Env, "nats")
	if err != nil {
		return false, errors.Annotate(err, "reading nats relation")
	}
	for _, key := range NATSKeys {
		value, ok := settings[key]
		if !ok || value == "" {
			continue
		}
		if key == NATSPort {
			if port, err := strconv.Atoi(value); err == nil {
				d.State.SetInt(key, port)
				continue
			}
		}
		d.State.SetString(key, value)
	}
	for _, key := range NATSKeys {
		if !d.State.Contains(key) {
			return false, nil
		}
	}
	return true, nil
}

// ForgetNATS removes the recorded NATS settings.
func ForgetNATS(d *Deps) {
	for _, key := range NATSKeys {
		d.State.Delete(key)
	}
}

// Lookup returns key from the settings published on relation, falling
// back to the charm option of the same name. It reports false if neither
// holds a non-empty value.
func Lookup(d *Deps, relation, key string) (any, bool, error) {
	settings, err := hookenv.MergedRelationSettings(d.Env, relation)
	if err != nil {
		return nil, false, errors.Annotatef(err, "reading %s relation", relation)
	}
	if v, ok := settings[key]; ok && v != "" {
		return v, true, nil
	}
	v, ok := d.Config.Get(key)
	if !ok {
		return nil, false, nil
	}
	if s, isString := v.(string); isString && s == "" {
		return nil, false, nil
	}
	return v, true, nil
}
