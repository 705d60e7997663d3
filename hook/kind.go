// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hook

import (
	"strings"

	"github.com/juju/errors"
)

// Kind enumerates the hooks the orchestration agent may run.
type Kind string

const (
	Install       Kind = "install"
	Start         Kind = "start"
	Stop          Kind = "stop"
	ConfigChanged Kind = "config-changed"
	UpgradeCharm  Kind = "upgrade-charm"

	RelationJoined   Kind = "relation-joined"
	RelationChanged  Kind = "relation-changed"
	RelationDeparted Kind = "relation-departed"
	RelationBroken   Kind = "relation-broken"
)

var unitKinds = []Kind{Install, Start, Stop, ConfigChanged, UpgradeCharm}

var relationKinds = []Kind{RelationJoined, RelationChanged, RelationDeparted, RelationBroken}

// IsRelation reports whether k is a relation hook kind.
func (k Kind) IsRelation() bool {
	for _, rk := range relationKinds {
		if k == rk {
			return true
		}
	}
	return false
}

// Info identifies a hook by kind and, for relation hooks, the relation.
type Info struct {
	Kind         Kind
	RelationName string
}

// Name returns the hook name the agent uses for the hook.
func (hi Info) Name() string {
	if hi.Kind.IsRelation() {
		return hi.RelationName + "-" + string(hi.Kind)
	}
	return string(hi.Kind)
}

// Validate returns an error if the info is not valid.
func (hi Info) Validate() error {
	if hi.Kind.IsRelation() {
		if hi.RelationName == "" {
			return errors.NotValidf("%q hook without relation name", hi.Kind)
		}
		return nil
	}
	for _, uk := range unitKinds {
		if hi.Kind == uk {
			if hi.RelationName != "" {
				return errors.NotValidf("%q hook with relation name %q", hi.Kind, hi.RelationName)
			}
			return nil
		}
	}
	return errors.NotValidf("hook kind %q", hi.Kind)
}

// RelationHook returns the Info for a hook of kind on the named relation.
func RelationHook(relationName string, kind Kind) Info {
	return Info{Kind: kind, RelationName: relationName}
}

// Parse returns the Info described by a hook name such as "start" or
// "nats-relation-changed".
func Parse(name string) (Info, error) {
	for _, rk := range relationKinds {
		suffix := "-" + string(rk)
		if strings.HasSuffix(name, suffix) {
			hi := Info{Kind: rk, RelationName: strings.TrimSuffix(name, suffix)}
			return hi, errors.Trace(hi.Validate())
		}
	}
	if Kind(name).IsRelation() {
		return Info{}, errors.NotValidf("hook kind %q", name)
	}
	hi := Info{Kind: Kind(name)}
	if err := hi.Validate(); err != nil {
		return Info{}, errors.Trace(err)
	}
	return hi, nil
}
