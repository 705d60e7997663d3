// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package render writes configuration files from templates once every
// fact they need has been recorded in unit state.
package render

import (
	"bytes"
	"io/fs"
	"os"
	"text/template"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/utils/v4"

	"github.com/juju/cf-charms/core/unitstate"
)

var logger = loggo.GetLogger("cfcharm.render")

// FileWriter reads and writes rendered files.
type FileWriter interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
}

// AtomicFileWriter writes files by renaming a completed temporary file
// over the destination.
type AtomicFileWriter struct{}

// ReadFile implements FileWriter.
func (AtomicFileWriter) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile implements FileWriter.
func (AtomicFileWriter) WriteFile(path string, data []byte, perm os.FileMode) error {
	return utils.AtomicWriteFile(path, data, perm)
}

// ConfigSpec describes one configuration file.
type ConfigSpec struct {
	// Name is the logical name of the file, used in log messages.
	Name string

	// Required lists the unit state keys the template needs, in the
	// order they are checked.
	Required []string

	// NonEmpty lists required keys for which an empty string counts as
	// unset.
	NonEmpty []string

	// Extra holds additional template values that do not come from
	// unit state.
	Extra map[string]any

	// Template names the template in the emitter's template set.
	Template string

	// Path is the destination file.
	Path string

	// Perm is the destination file mode; zero means 0644.
	Perm os.FileMode

	// Milestone is recorded in unit state when the file is written.
	Milestone unitstate.Milestone
}

// Result reports what Emit did with a ConfigSpec.
type Result int

const (
	// NotReady means a required key was missing and nothing was written.
	NotReady Result = iota

	// Unchanged means the file already held the rendered content.
	Unchanged

	// Written means new content was written to the file.
	Written
)

// Ready reports whether the file is in place.
func (r Result) Ready() bool {
	return r != NotReady
}

// Changed reports whether the file content changed.
func (r Result) Changed() bool {
	return r == Written
}

// Emitter renders ConfigSpecs.
type Emitter struct {
	templates *template.Template
	writer    FileWriter
}

// NewEmitter returns an Emitter using the templates matching patterns in
// fsys and writing through writer.
func NewEmitter(fsys fs.FS, writer FileWriter, patterns ...string) (*Emitter, error) {
	tmpl, err := template.New("").Option("missingkey=error").ParseFS(fsys, patterns...)
	if err != nil {
		return nil, errors.Annotate(err, "parsing templates")
	}
	return &Emitter{templates: tmpl, writer: writer}, nil
}

// Missing returns the keys of spec.Required that are not satisfied by st.
func (spec ConfigSpec) Missing(st *unitstate.Store) []string {
	nonEmpty := set.NewStrings(spec.NonEmpty...)
	var missing []string
	for _, key := range spec.Required {
		if !st.Contains(key) {
			missing = append(missing, key)
			continue
		}
		if s, ok := st.String(key); ok && s == "" && nonEmpty.Contains(key) {
			missing = append(missing, key)
		}
	}
	return missing
}

// Emit renders spec if every required key is available in st. It returns
// NotReady, without writing any file, if a key is missing; a milestone
// reached earlier is then cleared in memory. If the file already holds
// the rendered content it is left alone and Emit returns Unchanged;
// otherwise the file is written and Emit returns Written. In both cases
// the spec's milestone is recorded and saved.
func (e *Emitter) Emit(spec ConfigSpec, st *unitstate.Store) (Result, error) {
	if missing := spec.Missing(st); len(missing) > 0 {
		logger.Infof("%s config not ready, missing %v", spec.Name, missing)
		if spec.Milestone != "" && st.Reached(spec.Milestone) {
			st.SetMilestone(spec.Milestone, false)
		}
		return NotReady, nil
	}
	data, err := e.Render(spec, st)
	if err != nil {
		return NotReady, errors.Trace(err)
	}
	result := Written
	if current, err := e.writer.ReadFile(spec.Path); err == nil && bytes.Equal(current, data) {
		logger.Debugf("%s config at %s unchanged", spec.Name, spec.Path)
		result = Unchanged
	} else {
		perm := spec.Perm
		if perm == 0 {
			perm = 0644
		}
		if err := e.writer.WriteFile(spec.Path, data, perm); err != nil {
			return NotReady, errors.Annotatef(err, "writing %s config to %q", spec.Name, spec.Path)
		}
		logger.Infof("%s config written to %s", spec.Name, spec.Path)
	}
	if spec.Milestone != "" && !st.Reached(spec.Milestone) {
		if err := st.SetAndSave(string(spec.Milestone), true); err != nil {
			return NotReady, errors.Trace(err)
		}
	}
	return result, nil
}

// Render returns the rendered template for spec without checking
// readiness or writing the file.
func (e *Emitter) Render(spec ConfigSpec, st *unitstate.Store) ([]byte, error) {
	context := make(map[string]any, len(spec.Required)+len(spec.Extra))
	for k, v := range spec.Extra {
		context[k] = v
	}
	for _, key := range spec.Required {
		context[key] = st.Get(key, nil)
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, spec.Template, context); err != nil {
		return nil, errors.Annotatef(err, "rendering %s config", spec.Name)
	}
	return buf.Bytes(), nil
}
