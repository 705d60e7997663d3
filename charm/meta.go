// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charm reads the parts of a charm's metadata.yaml that the hook
// binary needs: the charm name and the relations it declares.
package charm

import (
	"io"
	"os"
	"path/filepath"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/yaml.v2"
)

const (
	ScopeGlobal    = "global"
	ScopeContainer = "container"
)

// Relation represents a single relation defined in the charm
// metadata.yaml file.
type Relation struct {
	Interface string
	Optional  bool
	Limit     int
	Scope     string
}

// Meta represents the content of a charm's metadata.yaml file.
type Meta struct {
	Name        string
	Summary     string
	Description string
	Provides    map[string]Relation
	Requires    map[string]Relation
	Peers       map[string]Relation
	Subordinate bool
}

// ReadMetaFile reads metadata.yaml from charmDir.
func ReadMetaFile(charmDir string) (*Meta, error) {
	path := filepath.Join(charmDir, "metadata.yaml")
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotate(err, "reading charm metadata")
	}
	defer f.Close()
	meta, err := ReadMeta(f)
	return meta, errors.Annotatef(err, "parsing %q", path)
}

// ReadMeta reads the content of a metadata.yaml file and returns
// its representation.
func ReadMeta(r io.Reader) (*Meta, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	raw := make(map[interface{}]interface{})
	if err := yaml.Unmarshal(data, raw); err != nil {
		return nil, errors.Annotate(err, "metadata")
	}
	v, err := charmSchema.Coerce(raw, nil)
	if err != nil {
		return nil, errors.Annotate(err, "metadata")
	}
	m := v.(map[string]interface{})
	meta := &Meta{
		Name:        m["name"].(string),
		Summary:     m["summary"].(string),
		Description: m["description"].(string),
		Provides:    parseRelations(m["provides"]),
		Requires:    parseRelations(m["requires"]),
		Peers:       parseRelations(m["peers"]),
	}
	if subordinate, ok := m["subordinate"].(bool); ok && subordinate {
		valid := false
		for _, rel := range meta.Requires {
			if rel.Scope == ScopeContainer {
				valid = true
				break
			}
		}
		if !valid {
			return nil, errors.Errorf("subordinate charm %q lacks requires relation with container scope", meta.Name)
		}
		meta.Subordinate = true
	}
	return meta, nil
}

// RelationNames returns the sorted names of every relation the charm
// declares, whatever its role.
func (m *Meta) RelationNames() []string {
	names := set.NewStrings()
	for _, rels := range []map[string]Relation{m.Provides, m.Requires, m.Peers} {
		for name := range rels {
			names.Add(name)
		}
	}
	return names.SortedValues()
}

// HasRelation reports whether the charm declares a relation called name.
func (m *Meta) HasRelation(name string) bool {
	for _, rels := range []map[string]Relation{m.Provides, m.Requires, m.Peers} {
		if _, ok := rels[name]; ok {
			return true
		}
	}
	return false
}

func parseRelations(relations interface{}) map[string]Relation {
	if relations == nil {
		return nil
	}
	result := make(map[string]Relation)
	for name, rel := range relations.(map[interface{}]interface{}) {
		relMap := rel.(map[string]interface{})
		relation := Relation{
			Interface: relMap["interface"].(string),
			Optional:  relMap["optional"].(bool),
		}
		if scope, ok := relMap["scope"].(string); ok {
			relation.Scope = scope
		}
		if limit, ok := relMap["limit"].(int64); ok {
			relation.Limit = int(limit)
		}
		result[name.(string)] = relation
	}
	return result
}

// ifaceExpander returns a checker that expands the interface shorthand
// notation, so that both
//
//	provides:
//	  nats: nats
//
// and
//
//	provides:
//	  nats:
//	    interface: nats
//	    limit: 1
//
// coerce to the long form, with defaults filled in.
func ifaceExpander(limit interface{}) schema.Checker {
	return ifaceExpC{limit}
}

type ifaceExpC struct {
	limit interface{}
}

var (
	stringC = schema.String()
	mapC    = schema.StringMap(schema.Any())
)

func (c ifaceExpC) Coerce(v interface{}, path []string) (interface{}, error) {
	if s, err := stringC.Coerce(v, path); err == nil {
		return map[string]interface{}{
			"interface": s,
			"limit":     c.limit,
			"optional":  false,
			"scope":     ScopeGlobal,
		}, nil
	}

	v, err := mapC.Coerce(v, path)
	if err != nil {
		return nil, err
	}
	m := v.(map[string]interface{})
	if _, ok := m["limit"]; !ok {
		m["limit"] = c.limit
	}
	if _, ok := m["optional"]; !ok {
		m["optional"] = false
	}
	if _, ok := m["scope"]; !ok {
		m["scope"] = ScopeGlobal
	}
	return ifaceSchema.Coerce(m, path)
}

var ifaceSchema = schema.FieldMap(
	schema.Fields{
		"interface": schema.String(),
		"limit":     schema.OneOf(schema.Const(nil), schema.Int()),
		"scope":     schema.OneOf(schema.Const(ScopeGlobal), schema.Const(ScopeContainer)),
		"optional":  schema.Bool(),
	},
	schema.Defaults{
		"scope": schema.Omit,
	},
)

var charmSchema = schema.FieldMap(
	schema.Fields{
		"name":        schema.String(),
		"summary":     schema.String(),
		"description": schema.String(),
		"peers":       schema.Map(schema.String(), ifaceExpander(int64(1))),
		"provides":    schema.Map(schema.String(), ifaceExpander(nil)),
		"requires":    schema.Map(schema.String(), ifaceExpander(int64(1))),
		"series":      schema.List(schema.String()),
		"subordinate": schema.Bool(),
	},
	schema.Defaults{
		"summary":     "",
		"description": "",
		"provides":    schema.Omit,
		"requires":    schema.Omit,
		"peers":       schema.Omit,
		"series":      schema.Omit,
		"subordinate": schema.Omit,
	},
)
