// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm_test

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/cf-charms/charm"
)

type MetaSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&MetaSuite{})

const cloudControllerMeta = `
name: cf-cloud-controller
summary: Cloud Foundry cloud controller
description: |
  The cloud controller maintains a database of applications.
maintainer: someone@example.com
provides:
  cc:
    interface: cf-cloud-controller
requires:
  nats: nats
  db:
    interface: mysql
    optional: true
    limit: 2
`

func (s *MetaSuite) TestReadMeta(c *gc.C) {
	meta, err := charm.ReadMeta(strings.NewReader(cloudControllerMeta))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(meta.Name, gc.Equals, "cf-cloud-controller")
	c.Assert(meta.Summary, gc.Equals, "Cloud Foundry cloud controller")
	c.Assert(meta.Description, gc.Equals, "The cloud controller maintains a database of applications.\n")
	c.Assert(meta.Subordinate, jc.IsFalse)
	c.Assert(meta.Provides["cc"], gc.Equals, charm.Relation{Interface: "cf-cloud-controller", Scope: charm.ScopeGlobal})
	c.Assert(meta.Requires["nats"], gc.Equals, charm.Relation{Interface: "nats", Limit: 1, Scope: charm.ScopeGlobal})
	c.Assert(meta.Requires["db"], gc.Equals, charm.Relation{Interface: "mysql", Limit: 2, Optional: true, Scope: charm.ScopeGlobal})
	c.Assert(meta.Peers, gc.IsNil)
}

func (s *MetaSuite) TestRelationNames(c *gc.C) {
	meta, err := charm.ReadMeta(strings.NewReader(cloudControllerMeta))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(meta.RelationNames(), jc.DeepEquals, []string{"cc", "db", "nats"})
	c.Assert(meta.HasRelation("nats"), jc.IsTrue)
	c.Assert(meta.HasRelation("uaa"), jc.IsFalse)
}

func (s *MetaSuite) TestMissingName(c *gc.C) {
	_, err := charm.ReadMeta(strings.NewReader("summary: nameless\n"))
	c.Assert(err, gc.ErrorMatches, `metadata: name: expected string, got nothing`)
}

func (s *MetaSuite) TestInvalidScope(c *gc.C) {
	_, err := charm.ReadMeta(strings.NewReader(`
name: bad
requires:
  nats:
    interface: nats
    scope: galaxy
`))
	c.Assert(err, gc.ErrorMatches, `metadata: requires.nats.scope: .*`)
}

func (s *MetaSuite) TestSubordinateWithoutContainerRelation(c *gc.C) {
	_, err := charm.ReadMeta(strings.NewReader("name: logger\nsubordinate: true\nrequires:\n  juju-info: juju-info\n"))
	c.Assert(err, gc.ErrorMatches, `subordinate charm "logger" lacks requires relation with container scope`)
}

func (s *MetaSuite) TestReadMetaFile(c *gc.C) {
	dir := c.MkDir()
	err := os.WriteFile(filepath.Join(dir, "metadata.yaml"), []byte(cloudControllerMeta), 0644)
	c.Assert(err, jc.ErrorIsNil)

	meta, err := charm.ReadMetaFile(dir)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(meta.Name, gc.Equals, "cf-cloud-controller")

	_, err = charm.ReadMetaFile(c.MkDir())
	c.Assert(err, gc.ErrorMatches, `reading charm metadata: .*no such file or directory`)
}

func (s *MetaSuite) TestShortFormLimitDefaults(c *gc.C) {
	meta, err := charm.ReadMeta(strings.NewReader(`
name: cf-uaa
peers:
  cluster: uaa-cluster
provides:
  uaa: cf-uaa
requires:
  nats: nats
`))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(meta.Peers["cluster"].Limit, gc.Equals, 1)
	c.Assert(meta.Requires["nats"].Limit, gc.Equals, 1)
	c.Assert(meta.Provides["uaa"].Limit, gc.Equals, 0)
}
