// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package hook resolves the hook a charm binary was invoked as and runs
// the handler registered for it.
package hook

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/names/v5"
)

// Context describes the environment the orchestration agent set up for a
// hook invocation.
type Context struct {
	// HookName is the hook being run, e.g. "nats-relation-changed".
	HookName string

	// CharmDir is the directory the charm is deployed to.
	CharmDir string

	// UnitName is the name of the local unit, e.g. "cf-uaa/0".
	UnitName string

	// RelationName, RelationID and RemoteUnitName are only set for
	// relation hooks.
	RelationName   string
	RelationID     string
	RemoteUnitName string
}

// NewContextFromEnv builds a Context for hookName from the variables the
// agent exports to hooks.
func NewContextFromEnv(hookName string, getenv func(string) string) (Context, error) {
	ctx := Context{
		HookName:       hookName,
		CharmDir:       getenv("CHARM_DIR"),
		UnitName:       getenv("JUJU_UNIT_NAME"),
		RelationName:   getenv("JUJU_RELATION"),
		RelationID:     getenv("JUJU_RELATION_ID"),
		RemoteUnitName: getenv("JUJU_REMOTE_UNIT"),
	}
	if ctx.CharmDir == "" {
		return Context{}, errors.NotValidf("empty CHARM_DIR")
	}
	if !names.IsValidUnit(ctx.UnitName) {
		return Context{}, errors.NotValidf("unit name %q", ctx.UnitName)
	}
	if ctx.RemoteUnitName != "" && !names.IsValidUnit(ctx.RemoteUnitName) {
		return Context{}, errors.NotValidf("remote unit name %q", ctx.RemoteUnitName)
	}
	return ctx, nil
}

// UnitTag returns the tag of the local unit.
func (ctx Context) UnitTag() names.UnitTag {
	return names.NewUnitTag(ctx.UnitName)
}

// InRelation reports whether the hook runs in a relation context.
func (ctx Context) InRelation() bool {
	return ctx.RelationID != ""
}

// String describes the context for log messages.
func (ctx Context) String() string {
	s := []string{ctx.UnitName}
	if ctx.RelationID != "" {
		s = append(s, ctx.RelationID)
	}
	if ctx.RemoteUnitName != "" {
		s = append(s, ctx.RemoteUnitName)
	}
	return fmt.Sprintf("Context<%s>", strings.Join(s, ", "))
}
