// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charmconfig_test

import (
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
	"gopkg.in/juju/environschema.v1"

	"github.com/juju/cf-charms/internal/charmconfig"
)

type configSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&configSuite{})

var testSchema = charmconfig.Schema{
	Fields: environschema.Fields{
		"domain": {
			Description: "Domain applications are served from",
			Type:        environschema.Tstring,
			Mandatory:   true,
		},
		"nginx_port": {
			Description: "Port nginx listens on",
			Type:        environschema.Tint,
		},
		"external_domain": {
			Description: "External domain",
			Type:        environschema.Tstring,
		},
		"debug": {
			Description: "Verbose logging",
			Type:        environschema.Tbool,
		},
	},
	Defaults: map[string]any{
		"nginx_port": 80,
	},
}

func (s *configSuite) TestCoerce(c *gc.C) {
	cfg, err := testSchema.Coerce(map[string]any{
		"domain":     "example.com",
		"nginx_port": int64(8080),
		"debug":      true,
		"unknown":    "dropped",
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(cfg.String("domain"), gc.Equals, "example.com")
	c.Assert(cfg.Int("nginx_port"), gc.Equals, 8080)
	c.Assert(cfg.Bool("debug"), jc.IsTrue)
	_, ok := cfg.Get("unknown")
	c.Assert(ok, jc.IsFalse)
	_, ok = cfg.Get("external_domain")
	c.Assert(ok, jc.IsFalse)
	c.Assert(cfg.String("external_domain"), gc.Equals, "")
}

func (s *configSuite) TestDefaults(c *gc.C) {
	cfg, err := testSchema.Coerce(map[string]any{
		"domain":          "example.com",
		"external_domain": nil,
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(cfg.Int("nginx_port"), gc.Equals, 80)
	c.Assert(cfg.Bool("debug"), jc.IsFalse)
}

func (s *configSuite) TestMandatoryMissing(c *gc.C) {
	_, err := testSchema.Coerce(map[string]any{})
	c.Assert(err, gc.ErrorMatches, `charm config: domain: expected string, got nothing`)
}

func (s *configSuite) TestWrongType(c *gc.C) {
	_, err := testSchema.Coerce(map[string]any{
		"domain":     "example.com",
		"nginx_port": "eighty",
	})
	c.Assert(err, gc.ErrorMatches, `charm config: nginx_port: .*`)
}

func (s *configSuite) TestDefaultForUndeclaredOption(c *gc.C) {
	bad := charmconfig.Schema{
		Fields:   testSchema.Fields,
		Defaults: map[string]any{"router_port": 80},
	}
	_, err := bad.Coerce(map[string]any{"domain": "example.com"})
	c.Assert(err, gc.ErrorMatches, `default for undeclared option "router_port" not found`)
}

func (s *configSuite) TestNew(c *gc.C) {
	cfg := charmconfig.New(map[string]any{"cc_port": 9022, "system_domain": "sys.example.com"})
	c.Assert(cfg.Int("cc_port"), gc.Equals, 9022)
	c.Assert(cfg.String("system_domain"), gc.Equals, "sys.example.com")
}
