// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charms lists the charms the hook binary serves.
package charms

import (
	"sort"

	"github.com/juju/errors"

	"github.com/juju/cf-charms/charms/cloudcontroller"
	"github.com/juju/cf-charms/charms/router"
	"github.com/juju/cf-charms/charms/uaa"
	"github.com/juju/cf-charms/internal/charmhook"
)

var all = map[string]charmhook.Charm{
	cloudcontroller.Name: cloudcontroller.Charm,
	router.Name:          router.Charm,
	uaa.Name:             uaa.Charm,
}

// Names returns the names of every charm, sorted.
func Names() []string {
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the charm called name.
func Lookup(name string) (charmhook.Charm, error) {
	c, ok := all[name]
	if !ok {
		return charmhook.Charm{}, errors.NotFoundf("charm %q", name)
	}
	return c, nil
}
