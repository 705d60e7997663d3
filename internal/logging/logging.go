// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package logging routes the hook binary's log output to a per-unit debug
// file and to the agent's log.
package logging

import (
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/lumberjack/v2"
)

const (
	// DefaultLogDir is where the unit debug log is written.
	DefaultLogDir = "/var/log/juju"

	// DefaultConfig is the logging configuration used when none is given.
	DefaultConfig = "<root>=DEBUG"

	fileWriterName  = "unit-file"
	agentWriterName = "juju-log"
)

// AgentLogger forwards a message to the agent's log.
type AgentLogger interface {
	Log(level loggo.Level, msg string) error
}

// Params configures Setup.
type Params struct {
	// UnitName is the unit the hook runs for, e.g. "cf-uaa/0".
	UnitName string

	// LogDir holds the debug log; empty means DefaultLogDir.
	LogDir string

	// Config is a loggo configuration string such as
	// "<root>=INFO;cfcharm.render=TRACE". Empty means DefaultConfig.
	Config string

	// Agent, if not nil, receives INFO and above.
	Agent AgentLogger
}

// Filename returns the debug log path for unitName in logDir.
func Filename(logDir, unitName string) string {
	if logDir == "" {
		logDir = DefaultLogDir
	}
	return filepath.Join(logDir, strings.Replace(unitName, "/", "-", -1)+"-debug.log")
}

// Setup configures the default loggo context. The returned function
// removes the writers Setup added and closes the log file.
func Setup(p Params) (func(), error) {
	config := p.Config
	if config == "" {
		config = DefaultConfig
	}
	if err := loggo.ConfigureLoggers(config); err != nil {
		return nil, errors.Annotatef(err, "logging config %q", config)
	}

	file := &lumberjack.Logger{
		Filename:   Filename(p.LogDir, p.UnitName),
		MaxSize:    100, // megabytes
		MaxBackups: 2,
		Compress:   true,
	}
	if err := loggo.RegisterWriter(fileWriterName, loggo.NewSimpleWriter(file, loggo.DefaultFormatter)); err != nil {
		return nil, errors.Annotate(err, "adding unit log file")
	}
	cleanup := func() {
		loggo.RemoveWriter(fileWriterName)
		file.Close()
	}
	if p.Agent != nil {
		w := loggo.NewMinimumLevelWriter(&agentWriter{agent: p.Agent}, loggo.INFO)
		if err := loggo.RegisterWriter(agentWriterName, w); err != nil {
			cleanup()
			return nil, errors.Annotate(err, "adding agent log writer")
		}
		fileCleanup := cleanup
		cleanup = func() {
			loggo.RemoveWriter(agentWriterName)
			fileCleanup()
		}
	}
	return cleanup, nil
}

// agentWriter is a loggo.Writer sending entries to the agent. The agent
// logger must not log through loggo itself.
type agentWriter struct {
	agent AgentLogger
}

// Write implements loggo.Writer.
func (w *agentWriter) Write(entry loggo.Entry) {
	msg := entry.Message
	if entry.Module != "" {
		msg = entry.Module + ": " + msg
	}
	// The file writer already holds the entry.
	_ = w.agent.Log(entry.Level, msg)
}
