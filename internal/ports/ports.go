// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package ports keeps the ports a unit has opened in line with its
// configuration.
package ports

import (
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/juju/cf-charms/core/unitstate"
)

var logger = loggo.GetLogger("cfcharm.ports")

// Opener opens and closes ports on the unit.
type Opener interface {
	OpenPort(port int) error
	ClosePort(port int) error
}

// AppliedKey returns the unit state key recording the port last opened
// for the option called name.
func AppliedKey(name string) string {
	return "applied-port." + name
}

// Applied returns the port last opened for name, if any.
func Applied(st *unitstate.Store, name string) (int, bool) {
	return st.Int(AppliedKey(name))
}

// Converge makes desired the open port for name. The previously applied
// port is closed only when it differs from desired. Desired is opened on
// every call, so a port closed behind the charm's back is reopened. The
// new applied port is saved before Converge returns. It reports whether the applied port changed.
func Converge(st *unitstate.Store, opener Opener, name string, desired int) (bool, error) {
	if desired <= 0 || desired > 65535 {
		return false, errors.NotValidf("%s %d", name, desired)
	}
	previous, applied := Applied(st, name)
	if applied && previous == desired {
		logger.Debugf("%s %d already applied, ensuring it is open", name, desired)
		if err := opener.OpenPort(desired); err != nil {
			return false, errors.Annotatef(err, "opening %s %d", name, desired)
		}
		return false, nil
	}
	if applied {
		logger.Infof("%s changed from %d to %d", name, previous, desired)
		if err := opener.ClosePort(previous); err != nil {
			return false, errors.Annotatef(err, "closing %s %d", name, previous)
		}
	}
	if err := opener.OpenPort(desired); err != nil {
		return false, errors.Annotatef(err, "opening %s %d", name, desired)
	}
	if err := st.SetAndSave(AppliedKey(name), desired); err != nil {
		return false, errors.Trace(err)
	}
	return true, nil
}

// Close closes the port applied for name, if any, and forgets it.
func Close(st *unitstate.Store, opener Opener, name string) error {
	previous, applied := Applied(st, name)
	if !applied {
		return nil
	}
	if err := opener.ClosePort(previous); err != nil {
		return errors.Annotatef(err, "closing %s %d", name, previous)
	}
	st.Delete(AppliedKey(name))
	return errors.Trace(st.Save())
}
