// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hook

import (
	"sort"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/juju/cf-charms/charm"
)

var logger = loggo.GetLogger("cfcharm.hook")

// Handler runs a hook. Handlers must be idempotent: the agent may deliver
// the same hook more than once for a single logical change.
type Handler func() error

// Registry maps hook names to handlers.
type Registry struct {
	meta     *charm.Meta
	handlers map[string]Handler
}

// NewRegistry returns an empty Registry. If meta is not nil, handlers for
// relations the charm does not declare are rejected.
func NewRegistry(meta *charm.Meta) *Registry {
	return &Registry{
		meta:     meta,
		handlers: make(map[string]Handler),
	}
}

// Register associates the hook called name with handler.
func (r *Registry) Register(name string, handler Handler) error {
	hi, err := Parse(name)
	if err != nil {
		return errors.Annotatef(err, "registering %q", name)
	}
	if hi.Kind.IsRelation() && r.meta != nil && !r.meta.HasRelation(hi.RelationName) {
		return errors.NotFoundf("relation %q in charm %q", hi.RelationName, r.meta.Name)
	}
	if _, ok := r.handlers[name]; ok {
		return errors.AlreadyExistsf("handler for hook %q", name)
	}
	r.handlers[name] = handler
	return nil
}

// RegisterAll registers every handler in handlers, stopping at the first
// failure.
func (r *Registry) RegisterAll(handlers map[string]Handler) error {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.Register(name, handlers[name]); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Names returns the registered hook names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the handler registered for name. Hooks without a handler
// are ignored.
func (r *Registry) Dispatch(name string) error {
	handler, ok := r.handlers[name]
	if !ok {
		logger.Debugf("no handler for hook %q, skipping", name)
		return nil
	}
	logger.Infof("running %s hook", name)
	return errors.Annotatef(handler(), "%s hook", name)
}
