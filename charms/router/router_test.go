// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package router_test

import (
	"os"
	"path/filepath"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/cf-charms/charms/router"
	"github.com/juju/cf-charms/internal/charmhook/charmhooktesting"
	"github.com/juju/cf-charms/internal/hookenv"
)

const unit = "cf-go-router/0"

type routerSuite struct {
	testing.IsolationSuite

	fix *charmhooktesting.Fixture
}

var _ = gc.Suite(&routerSuite{})

func (s *routerSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.fix = charmhooktesting.NewFixture(map[string]any{"status_password": "hush"})
}

func (s *routerSuite) run(c *gc.C, hookName string) {
	c.Assert(s.fix.Run(router.Charm, hookName, unit), jc.ErrorIsNil)
}

func (s *routerSuite) joinNATS() {
	s.fix.Env.SetRelation("nats", "nats:4", "nats/0", map[string]string{
		"nats_address":  "10.0.0.3",
		"nats_port":     "4222",
		"nats_user":     "nats",
		"nats_password": "secret",
	})
}

func (s *routerSuite) TestInstall(c *gc.C) {
	s.run(c, "install")
	s.fix.Packages.CheckCall(c, 2, "Install", router.Packages)
	c.Assert(s.fix.Services.Confs[router.Service].ExecStart, gc.Equals,
		"/var/lib/cloudfoundry/cfgorouter/bin/router -c /var/lib/cloudfoundry/cfgorouter/config/gorouter.yml")
	c.Assert(s.fix.Host.Exists(router.LogDir), jc.IsTrue)
	c.Assert(s.fix.Env.LastStatus().Status, gc.Equals, hookenv.Waiting)
}

func (s *routerSuite) TestStartWaitsForConfig(c *gc.C) {
	s.run(c, "config-changed")
	s.run(c, "start")
	c.Assert(s.fix.Services.Actions, gc.HasLen, 0)
	c.Assert(s.fix.Env.OpenPorts(), gc.HasLen, 0)
	c.Assert(s.fix.Files.Files, gc.HasLen, 0)
}

func (s *routerSuite) TestNATSRelationChangedStartsRouter(c *gc.C) {
	s.run(c, "install")
	s.run(c, "config-changed")
	s.run(c, "start")

	s.joinNATS()
	s.run(c, "nats-relation-changed")
	s.run(c, "nats-relation-changed")

	conf := s.fix.Files.Files[router.ConfigFile]
	c.Assert(conf, gc.Matches, `(?s).*host: "10.0.0.3"\n    port: 4222\n.*`)
	c.Assert(conf, gc.Matches, `(?s).*pass: "hush"\n.*`)
	c.Assert(conf, gc.Matches, `(?s).*\nport: 80\n.*`)
	c.Assert(s.fix.Services.Actions, jc.DeepEquals, []string{"start " + router.Service})
	c.Assert(s.fix.Env.OpenPorts(), jc.DeepEquals, []int{80})
	c.Assert(s.fix.Env.LastStatus().Status, gc.Equals, hookenv.Active)
}

func (s *routerSuite) TestRouterPortChange(c *gc.C) {
	s.joinNATS()
	s.run(c, "nats-relation-changed")
	c.Assert(s.fix.Env.OpenPorts(), jc.DeepEquals, []int{80})

	s.fix.Env.ConfigValues["router_port"] = 8080
	s.fix.Env.ResetCalls()
	s.fix.Services.Actions = nil
	s.run(c, "config-changed")
	s.run(c, "config-changed")

	var portCalls []any
	for _, call := range s.fix.Env.Calls() {
		switch call.FuncName {
		case "OpenPort", "ClosePort":
			portCalls = append(portCalls, call.FuncName, call.Args[0])
		}
	}
	c.Assert(portCalls, jc.DeepEquals, []any{"ClosePort", 80, "OpenPort", 8080, "OpenPort", 8080})
	c.Assert(s.fix.Services.Actions, jc.DeepEquals, []string{"restart " + router.Service})
	c.Assert(s.fix.Env.OpenPorts(), jc.DeepEquals, []int{8080})
	c.Assert(s.fix.Files.Files[router.ConfigFile], gc.Matches, `(?s).*\nport: 8080\n.*`)
}

func (s *routerSuite) TestRepeatedHooksRestartNothing(c *gc.C) {
	s.joinNATS()
	s.run(c, "nats-relation-changed")
	s.fix.Services.Actions = nil
	writes := s.fix.Files.Writes

	s.run(c, "config-changed")
	s.run(c, "config-changed")
	s.run(c, "nats-relation-changed")
	c.Assert(s.fix.Services.Actions, gc.HasLen, 0)
	c.Assert(s.fix.Files.Writes, gc.Equals, writes)
	c.Assert(s.fix.Env.OpenPorts(), jc.DeepEquals, []int{80})
}

func (s *routerSuite) TestNATSChangeRestartsRouter(c *gc.C) {
	s.joinNATS()
	s.run(c, "nats-relation-changed")
	s.fix.Services.Actions = nil

	s.fix.Env.SetRelation("nats", "nats:4", "nats/0", map[string]string{
		"nats_address":  "10.0.0.3",
		"nats_port":     "4222",
		"nats_user":     "nats",
		"nats_password": "rotated",
	})
	s.run(c, "nats-relation-changed")
	c.Assert(s.fix.Services.Actions, jc.DeepEquals, []string{"restart " + router.Service})
}

func (s *routerSuite) TestInstallRunsExecdPreinstall(c *gc.C) {
	s.fix.CharmDir = c.MkDir()
	dir := filepath.Join(s.fix.CharmDir, "exec.d", "mirror")
	c.Assert(os.MkdirAll(dir, 0755), jc.ErrorIsNil)
	script := filepath.Join(dir, "charm-pre-install")
	c.Assert(os.WriteFile(script, []byte("#!/bin/sh\n"), 0755), jc.ErrorIsNil)

	s.run(c, "install")
	c.Assert(s.fix.Runner.Commands(), jc.DeepEquals, []string{script})
	s.fix.Packages.CheckCallNames(c, "AddSource", "Update", "Install")
}

func (s *routerSuite) TestStop(c *gc.C) {
	s.joinNATS()
	s.run(c, "nats-relation-changed")
	s.run(c, "stop")
	s.run(c, "stop")
	c.Assert(s.fix.Services.Actions, jc.DeepEquals, []string{"start " + router.Service, "stop " + router.Service})
	c.Assert(s.fix.Env.OpenPorts(), gc.HasLen, 0)
	_, applied := s.fix.State()["applied-port.router_port"]
	c.Assert(applied, jc.IsFalse)
}

func (s *routerSuite) TestNATSRelationBroken(c *gc.C) {
	s.joinNATS()
	s.run(c, "nats-relation-changed")
	s.fix.Env.RemoveRelation("nats")
	s.run(c, "nats-relation-broken")

	state := s.fix.State()
	c.Assert(state["router_ok"], gc.Equals, false)
	_, ok := state["nats_user"]
	c.Assert(ok, jc.IsFalse)
	c.Assert(s.fix.Env.LastStatus().Status, gc.Equals, hookenv.Waiting)

	s.run(c, "start")
	c.Assert(s.fix.Services.Active[router.Service], jc.IsFalse)
}
