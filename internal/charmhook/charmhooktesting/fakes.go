// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charmhooktesting provides in-memory stand-ins for the
// collaborators hook handlers use.
package charmhooktesting

import (
	"os"
	"sort"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/names/v5"
	"github.com/juju/naturalsort"
	"github.com/juju/testing"

	"github.com/juju/cf-charms/core/unitstate"
	"github.com/juju/cf-charms/hook"
	"github.com/juju/cf-charms/internal/charmconfig"
	"github.com/juju/cf-charms/internal/charmhook"
	"github.com/juju/cf-charms/internal/hookenv"
	"github.com/juju/cf-charms/internal/runner/runnertesting"
	"github.com/juju/cf-charms/service/common"
)

// StatusCall records a status-set.
type StatusCall struct {
	Status  hookenv.Status
	Message string
}

// FakeEnv is an in-memory hookenv.Environment.
type FakeEnv struct {
	testing.Stub

	ConfigValues map[string]any

	// Relations maps relation name to relation id to remote unit to
	// the settings that unit published.
	Relations map[string]map[string]map[string]map[string]string

	Address  string
	Ports    map[int]bool
	Statuses []StatusCall
	Logs     []string
}

// NewFakeEnv returns a FakeEnv with no relations and the given config.
func NewFakeEnv(config map[string]any) *FakeEnv {
	return &FakeEnv{
		ConfigValues: config,
		Relations:    make(map[string]map[string]map[string]map[string]string),
		Address:      "10.0.0.10",
		Ports:        make(map[int]bool),
	}
}

// SetRelation records the settings unit published on relation id of
// relation name.
func (e *FakeEnv) SetRelation(name, id, unit string, settings map[string]string) {
	if e.Relations[name] == nil {
		e.Relations[name] = make(map[string]map[string]map[string]string)
	}
	if e.Relations[name][id] == nil {
		e.Relations[name][id] = make(map[string]map[string]string)
	}
	e.Relations[name][id][unit] = settings
}

// RemoveRelation forgets every relation called name.
func (e *FakeEnv) RemoveRelation(name string) {
	delete(e.Relations, name)
}

// OpenPorts returns the open ports in order.
func (e *FakeEnv) OpenPorts() []int {
	var ports []int
	for port, open := range e.Ports {
		if open {
			ports = append(ports, port)
		}
	}
	sort.Ints(ports)
	return ports
}

// LastStatus returns the most recent status set.
func (e *FakeEnv) LastStatus() StatusCall {
	if len(e.Statuses) == 0 {
		return StatusCall{}
	}
	return e.Statuses[len(e.Statuses)-1]
}

// Config implements hookenv.Environment.
func (e *FakeEnv) Config() (map[string]any, error) {
	e.AddCall("Config")
	if err := e.NextErr(); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(e.ConfigValues))
	for k, v := range e.ConfigValues {
		out[k] = v
	}
	return out, nil
}

// RelationIDs implements hookenv.Environment.
func (e *FakeEnv) RelationIDs(name string) ([]string, error) {
	e.AddCall("RelationIDs", name)
	if err := e.NextErr(); err != nil {
		return nil, err
	}
	var ids []string
	for id := range e.Relations[name] {
		ids = append(ids, id)
	}
	return naturalsort.Sort(ids), nil
}

func (e *FakeEnv) relation(id string) map[string]map[string]string {
	for _, rels := range e.Relations {
		if units, ok := rels[id]; ok {
			return units
		}
	}
	return nil
}

// RelationUnits implements hookenv.Environment.
func (e *FakeEnv) RelationUnits(relationID string) ([]string, error) {
	e.AddCall("RelationUnits", relationID)
	if err := e.NextErr(); err != nil {
		return nil, err
	}
	var units []string
	for unit := range e.relation(relationID) {
		units = append(units, unit)
	}
	return naturalsort.Sort(units), nil
}

// RelationGet implements hookenv.Environment.
func (e *FakeEnv) RelationGet(relationID, unit string) (map[string]string, error) {
	e.AddCall("RelationGet", relationID, unit)
	if err := e.NextErr(); err != nil {
		return nil, err
	}
	settings, ok := e.relation(relationID)[unit]
	if !ok {
		return nil, errors.NotFoundf("unit %q in relation %q", unit, relationID)
	}
	out := make(map[string]string, len(settings))
	for k, v := range settings {
		out[k] = v
	}
	return out, nil
}

// PrivateAddress implements hookenv.Environment.
func (e *FakeEnv) PrivateAddress() (string, error) {
	e.AddCall("PrivateAddress")
	return e.Address, e.NextErr()
}

// OpenPort implements hookenv.Environment.
func (e *FakeEnv) OpenPort(port int) error {
	e.AddCall("OpenPort", port)
	if err := e.NextErr(); err != nil {
		return err
	}
	e.Ports[port] = true
	return nil
}

// ClosePort implements hookenv.Environment.
func (e *FakeEnv) ClosePort(port int) error {
	e.AddCall("ClosePort", port)
	if err := e.NextErr(); err != nil {
		return err
	}
	delete(e.Ports, port)
	return nil
}

// Log implements hookenv.Environment.
func (e *FakeEnv) Log(level loggo.Level, msg string) error {
	e.Logs = append(e.Logs, level.String()+": "+msg)
	return nil
}

// SetStatus implements hookenv.Environment.
func (e *FakeEnv) SetStatus(status hookenv.Status, msg string) error {
	e.AddCall("SetStatus", status, msg)
	if err := e.NextErr(); err != nil {
		return err
	}
	e.Statuses = append(e.Statuses, StatusCall{Status: status, Message: msg})
	return nil
}

// FakeServices is an in-memory charmhook.Services.
type FakeServices struct {
	testing.Stub

	Confs   map[string]common.Conf
	Active  map[string]bool
	Actions []string
}

// NewFakeServices returns a FakeServices with nothing installed.
func NewFakeServices() *FakeServices {
	return &FakeServices{
		Confs:  make(map[string]common.Conf),
		Active: make(map[string]bool),
	}
}

// Install implements charmhook.Services.
func (s *FakeServices) Install(name string, conf common.Conf) error {
	s.AddCall("Install", name, conf)
	if err := s.NextErr(); err != nil {
		return err
	}
	s.Confs[name] = conf
	return nil
}

// Running implements charmhook.Services.
func (s *FakeServices) Running(name string) (bool, error) {
	s.AddCall("Running", name)
	return s.Active[name], s.NextErr()
}

// Start implements charmhook.Services. Actions records "start <name>"
// only when the service was stopped.
func (s *FakeServices) Start(name string) error {
	s.AddCall("Start", name)
	if err := s.NextErr(); err != nil {
		return err
	}
	if !s.Active[name] {
		s.Active[name] = true
		s.Actions = append(s.Actions, "start "+name)
	}
	return nil
}

// Stop implements charmhook.Services. Actions records "stop <name>" only
// when the service was running.
func (s *FakeServices) Stop(name string) error {
	s.AddCall("Stop", name)
	if err := s.NextErr(); err != nil {
		return err
	}
	if s.Active[name] {
		s.Active[name] = false
		s.Actions = append(s.Actions, "stop "+name)
	}
	return nil
}

// Restart implements charmhook.Services.
func (s *FakeServices) Restart(name string) error {
	s.AddCall("Restart", name)
	if err := s.NextErr(); err != nil {
		return err
	}
	s.Active[name] = true
	s.Actions = append(s.Actions, "restart "+name)
	return nil
}

// FakePackager records package operations.
type FakePackager struct {
	testing.Stub
}

// AddSource implements charmhook.Packager.
func (p *FakePackager) AddSource(source, key string) error {
	p.AddCall("AddSource", source, key)
	return p.NextErr()
}

// Update implements charmhook.Packager.
func (p *FakePackager) Update() error {
	p.AddCall("Update")
	return p.NextErr()
}

// Install implements charmhook.Packager.
func (p *FakePackager) Install(pkgs ...string) error {
	p.AddCall("Install", pkgs)
	return p.NextErr()
}

// FakeHost records host changes. Paths holds the files that exist.
type FakeHost struct {
	testing.Stub

	Paths map[string]bool
	Files map[string][]byte
}

// NewFakeHost returns a FakeHost where nothing exists.
func NewFakeHost() *FakeHost {
	return &FakeHost{Paths: make(map[string]bool), Files: make(map[string][]byte)}
}

// AddUser implements charmhook.Host.
func (h *FakeHost) AddUser(name string) error {
	h.AddCall("AddUser", name)
	return h.NextErr()
}

// MkdirAll implements charmhook.Host.
func (h *FakeHost) MkdirAll(path, owner, group string, perm os.FileMode) error {
	h.AddCall("MkdirAll", path, owner, group, perm)
	if err := h.NextErr(); err != nil {
		return err
	}
	h.Paths[path] = true
	return nil
}

// Chownr implements charmhook.Host.
func (h *FakeHost) Chownr(path, owner, group string) error {
	h.AddCall("Chownr", path, owner, group)
	return h.NextErr()
}

// WriteFile implements charmhook.Host.
func (h *FakeHost) WriteFile(path string, data []byte, owner, group string, perm os.FileMode) error {
	h.AddCall("WriteFile", path, data, owner, group, perm)
	if err := h.NextErr(); err != nil {
		return err
	}
	h.Paths[path] = true
	h.Files[path] = data
	return nil
}

// Exists implements charmhook.Host.
func (h *FakeHost) Exists(path string) bool {
	return h.Paths[path]
}

// RemoveSysVInit implements charmhook.Host.
func (h *FakeHost) RemoveSysVInit(name string) error {
	h.AddCall("RemoveSysVInit", name)
	return h.NextErr()
}

// Download implements charmhook.Host.
func (h *FakeHost) Download(url, dest string) error {
	h.AddCall("Download", url, dest)
	if err := h.NextErr(); err != nil {
		return err
	}
	h.Paths[dest] = true
	return nil
}

// ReplaceTree implements charmhook.Host.
func (h *FakeHost) ReplaceTree(src, dst string) error {
	h.AddCall("ReplaceTree", src, dst)
	if err := h.NextErr(); err != nil {
		return err
	}
	h.Paths[dst] = true
	return nil
}

// Symlink implements charmhook.Host.
func (h *FakeHost) Symlink(target, link string) error {
	h.AddCall("Symlink", target, link)
	if err := h.NextErr(); err != nil {
		return err
	}
	h.Paths[link] = true
	return nil
}

// FakeFiles is a render.FileWriter keeping files in memory.
type FakeFiles struct {
	Files  map[string]string
	Writes int
}

// NewFakeFiles returns an empty FakeFiles.
func NewFakeFiles() *FakeFiles {
	return &FakeFiles{Files: make(map[string]string)}
}

// ReadFile implements render.FileWriter.
func (f *FakeFiles) ReadFile(path string) ([]byte, error) {
	data, ok := f.Files[path]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	return []byte(data), nil
}

// WriteFile implements render.FileWriter.
func (f *FakeFiles) WriteFile(path string, data []byte, _ os.FileMode) error {
	f.Files[path] = string(data)
	f.Writes++
	return nil
}

// Fixture bundles fakes into charmhook.Deps.
type Fixture struct {
	Env      *FakeEnv
	Services *FakeServices
	Packages *FakePackager
	Host     *FakeHost
	Runner   *runnertesting.StubRunner
	Files    *FakeFiles
	Backend  *unitstate.MemoryBackend

	// CharmDir overrides the charm directory given to hooks.
	CharmDir string
}

// NewFixture returns a Fixture whose charm config is config.
func NewFixture(config map[string]any) *Fixture {
	return &Fixture{
		Env:      NewFakeEnv(config),
		Services: NewFakeServices(),
		Packages: &FakePackager{},
		Host:     NewFakeHost(),
		Runner:   runnertesting.NewStubRunner(),
		Files:    NewFakeFiles(),
		Backend:  unitstate.NewMemoryBackend(nil),
	}
}

// Deps returns fresh Deps for a run of hookName by unit, loading unit
// state from the fixture's backend as a new hook process would. The
// charm config is coerced with schema.
func (f *Fixture) Deps(hookName, unit string, schema charmconfig.Schema) (*charmhook.Deps, error) {
	st := unitstate.NewStore(f.Backend)
	if err := st.Load(); err != nil {
		return nil, errors.Trace(err)
	}
	raw, err := f.Env.Config()
	if err != nil {
		return nil, errors.Trace(err)
	}
	config, err := schema.Coerce(raw)
	if err != nil {
		return nil, errors.Trace(err)
	}
	charmDir := f.CharmDir
	if charmDir == "" {
		charmDir = "/var/lib/juju/agents/" + names.NewUnitTag(unit).String() + "/charm"
	}
	return &charmhook.Deps{
		Context: hook.Context{
			HookName: hookName,
			CharmDir: charmDir,
			UnitName: unit,
		},
		State:    st,
		Config:   config,
		Env:      f.Env,
		Services: f.Services,
		Packages: f.Packages,
		Host:     f.Host,
		Runner:   f.Runner,
		Files:    f.Files,
	}, nil
}

// Run runs hookName of ch for unit as a fresh hook process would: unit
// state is loaded from the fixture's backend and saved back on success.
func (f *Fixture) Run(ch charmhook.Charm, hookName, unit string) error {
	d, err := f.Deps(hookName, unit, ch.Schema)
	if err != nil {
		return errors.Trace(err)
	}
	meta, err := ch.Meta()
	if err != nil {
		return errors.Trace(err)
	}
	return charmhook.Run(ch, meta, d)
}

// State returns the unit state last saved.
func (f *Fixture) State() map[string]any {
	return f.Backend.Snapshot()
}
