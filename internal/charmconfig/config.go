// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charmconfig types the configuration settings the agent hands a
// charm, according to the options the charm declares.
package charmconfig

import (
	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/juju/environschema.v1"
)

// Schema declares a charm's configuration options.
type Schema struct {
	// Fields describes each option.
	Fields environschema.Fields

	// Defaults holds the values used for options the agent does not
	// report. Options with neither a value nor a default are unset.
	Defaults map[string]any
}

// Config holds coerced configuration settings.
type Config struct {
	values map[string]any
}

// New returns a Config holding values as given, without coercion.
func New(values map[string]any) Config {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return Config{values: out}
}

// Coerce checks raw against s and returns the typed settings. Options the
// charm does not declare are dropped.
func (s Schema) Coerce(raw map[string]any) (Config, error) {
	fields, defaults, err := s.Fields.ValidationSchema()
	if err != nil {
		return Config{}, errors.Trace(err)
	}
	for name, value := range s.Defaults {
		if _, ok := fields[name]; !ok {
			return Config{}, errors.NotFoundf("default for undeclared option %q", name)
		}
		defaults[name] = value
	}
	input := make(map[string]any, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		input[k] = v
	}
	v, err := schema.FieldMap(fields, defaults).Coerce(input, nil)
	if err != nil {
		return Config{}, errors.Annotate(err, "charm config")
	}
	return Config{values: v.(map[string]any)}, nil
}

// Get returns the value of key and whether it is set.
func (c Config) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// String returns the value of key, or "" if it is unset or not a string.
func (c Config) String(key string) string {
	v, _ := c.values[key].(string)
	return v
}

// Int returns the value of key, or 0 if it is unset or not an integer.
func (c Config) Int(key string) int {
	switch v := c.values[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Bool returns the value of key, or false if it is unset or not a bool.
func (c Config) Bool(key string) bool {
	v, _ := c.values[key].(bool)
	return v
}
