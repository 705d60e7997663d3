// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hook_test

import (
	"strings"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/cf-charms/charm"
	"github.com/juju/cf-charms/hook"
)

type registrySuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&registrySuite{})

func (s *registrySuite) TestDispatch(c *gc.C) {
	var called []string
	r := hook.NewRegistry(nil)
	err := r.RegisterAll(map[string]hook.Handler{
		"start": func() error {
			called = append(called, "start")
			return nil
		},
		"nats-relation-changed": func() error {
			called = append(called, "nats-relation-changed")
			return nil
		},
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(r.Names(), jc.DeepEquals, []string{"nats-relation-changed", "start"})

	c.Assert(r.Dispatch("nats-relation-changed"), jc.ErrorIsNil)
	c.Assert(r.Dispatch("start"), jc.ErrorIsNil)
	c.Assert(called, jc.DeepEquals, []string{"nats-relation-changed", "start"})
}

func (s *registrySuite) TestDispatchUnknownHookIsNoop(c *gc.C) {
	r := hook.NewRegistry(nil)
	c.Assert(r.Dispatch("leader-elected"), jc.ErrorIsNil)
	c.Assert(r.Dispatch("website-relation-joined"), jc.ErrorIsNil)
	c.Assert(r.Dispatch(""), jc.ErrorIsNil)
}

func (s *registrySuite) TestDispatchError(c *gc.C) {
	r := hook.NewRegistry(nil)
	boom := errors.New("boom")
	c.Assert(r.Register("stop", func() error { return boom }), jc.ErrorIsNil)
	err := r.Dispatch("stop")
	c.Assert(err, gc.ErrorMatches, "stop hook: boom")
	c.Assert(errors.Is(err, boom), jc.IsTrue)
}

func (s *registrySuite) TestRegisterInvalidName(c *gc.C) {
	r := hook.NewRegistry(nil)
	err := r.Register("reboot", func() error { return nil })
	c.Assert(err, gc.ErrorMatches, `registering "reboot": hook kind "reboot" not valid`)
}

func (s *registrySuite) TestRegisterTwice(c *gc.C) {
	r := hook.NewRegistry(nil)
	noop := func() error { return nil }
	c.Assert(r.Register("install", noop), jc.ErrorIsNil)
	err := r.Register("install", noop)
	c.Assert(err, jc.Satisfies, errors.IsAlreadyExists)
}

func (s *registrySuite) TestRegisterUndeclaredRelation(c *gc.C) {
	meta, err := charm.ReadMeta(strings.NewReader("name: cf-uaa\nrequires:\n  nats: nats\n"))
	c.Assert(err, jc.ErrorIsNil)
	r := hook.NewRegistry(meta)
	noop := func() error { return nil }

	c.Assert(r.Register("nats-relation-changed", noop), jc.ErrorIsNil)
	c.Assert(r.Register("config-changed", noop), jc.ErrorIsNil)
	err = r.Register("db-relation-changed", noop)
	c.Assert(err, gc.ErrorMatches, `relation "db" in charm "cf-uaa" not found`)
}
