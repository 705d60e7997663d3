// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charmhook

import (
	"bytes"

	"github.com/juju/errors"

	"github.com/juju/cf-charms/charm"
	"github.com/juju/cf-charms/hook"
	"github.com/juju/cf-charms/internal/charmconfig"
)

// Charm describes one charm served by the hook binary.
type Charm struct {
	// Name matches the name in the charm's metadata.yaml.
	Name string

	// Metadata is the charm's metadata.yaml as shipped.
	Metadata []byte

	// Schema declares the charm's configuration options.
	Schema charmconfig.Schema

	// Handlers returns the charm's hook handlers bound to d.
	Handlers func(d *Deps) map[string]hook.Handler
}

// Meta parses the shipped metadata.
func (c Charm) Meta() (*charm.Meta, error) {
	meta, err := charm.ReadMeta(bytes.NewReader(c.Metadata))
	if err != nil {
		return nil, errors.Annotatef(err, "charm %q", c.Name)
	}
	return meta, nil
}

// Run dispatches the hook named in d.Context to c's handlers and saves
// unit state once the handler succeeds. meta is the metadata of the
// deployed charm; relations it does not declare cannot have handlers.
func Run(c Charm, meta *charm.Meta, d *Deps) error {
	if err := d.Validate(); err != nil {
		return errors.Trace(err)
	}
	if meta.Name != c.Name {
		return errors.NotValidf("metadata for %q running %q hooks", meta.Name, c.Name)
	}
	reg := hook.NewRegistry(meta)
	if err := reg.RegisterAll(c.Handlers(d)); err != nil {
		return errors.Annotatef(err, "registering %s hooks", c.Name)
	}
	if d.Context.InRelation() {
		logger.Debugf("relation %s with %s", d.Context.RelationID, d.Context.RemoteUnitName)
	}
	if err := reg.Dispatch(d.Context.HookName); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(d.State.Save())
}
