// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// cfcharm runs the hooks of the Cloud Foundry charms. Each hook in a
// charm's hooks directory is a symlink to the binary, so the hook name is
// the name it was invoked as unless one is given as an argument.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
	"github.com/juju/proxy"

	"github.com/juju/cf-charms/charm"
	"github.com/juju/cf-charms/charms"
	"github.com/juju/cf-charms/core/unitstate"
	"github.com/juju/cf-charms/hook"
	"github.com/juju/cf-charms/internal/charmhook"
	"github.com/juju/cf-charms/internal/hookenv"
	"github.com/juju/cf-charms/internal/host"
	"github.com/juju/cf-charms/internal/logging"
	"github.com/juju/cf-charms/internal/packaging"
	"github.com/juju/cf-charms/internal/render"
	"github.com/juju/cf-charms/internal/runner"
	"github.com/juju/cf-charms/service"
)

var logger = loggo.GetLogger("cfcharm.cmd")

const (
	binaryName = "cfcharm"

	// stateFileName is the unit state file in the charm directory.
	stateFileName = "local_state.yaml"

	logConfigEnvKey = "CFCHARM_LOGGING_CONFIG"
)

type commandLine struct {
	stateFile string
	logDir    string
	logConfig string
	charmName string
	hookName  string
}

func parseArgs(args []string, getenv func(string) string) (commandLine, error) {
	var a commandLine
	flags := gnuflag.NewFlagSet(binaryName, gnuflag.ContinueOnError)
	flags.StringVar(&a.stateFile, "state-file", "",
		"unit state file (default $CHARM_DIR/"+stateFileName+")")
	flags.StringVar(&a.logDir, "log-dir", logging.DefaultLogDir,
		"directory of the unit debug log")
	flags.StringVar(&a.logConfig, "log-config", getenv(logConfigEnvKey),
		"logging configuration, e.g. <root>=INFO;cfcharm.render=TRACE")
	flags.StringVar(&a.charmName, "charm", "",
		"charm to run hooks for (default the name in metadata.yaml)")
	if err := flags.Parse(true, args[1:]); err != nil {
		return commandLine{}, errors.Trace(err)
	}
	switch flags.NArg() {
	case 0:
		a.hookName = filepath.Base(args[0])
		if a.hookName == binaryName {
			return commandLine{}, errors.New("no hook name given")
		}
	case 1:
		a.hookName = flags.Arg(0)
	default:
		return commandLine{}, errors.Errorf("unrecognized args: %q", flags.Args()[1:])
	}
	return a, nil
}

func proxySettings(getenv func(string) string) proxy.Settings {
	return proxy.Settings{
		Http:    getenv("JUJU_CHARM_HTTP_PROXY"),
		Https:   getenv("JUJU_CHARM_HTTPS_PROXY"),
		NoProxy: getenv("JUJU_CHARM_NO_PROXY"),
	}
}

// newRunner returns the runner hook tools and commands go through.
var newRunner = func() runner.Runner {
	return runner.NewExecRunner()
}

func run(a commandLine, ctx hook.Context, r runner.Runner, tools *hookenv.Tools, getenv func(string) string) error {
	logger.Debugf("running %s for %s", ctx.HookName, ctx)
	meta, err := charm.ReadMetaFile(ctx.CharmDir)
	if err != nil {
		return errors.Trace(err)
	}
	name := a.charmName
	if name == "" {
		name = meta.Name
	}
	ch, err := charms.Lookup(name)
	if err != nil {
		return errors.Trace(err)
	}

	raw, err := tools.Config()
	if err != nil {
		return errors.Trace(err)
	}
	config, err := ch.Schema.Coerce(raw)
	if err != nil {
		return errors.Trace(err)
	}

	statePath := a.stateFile
	if statePath == "" {
		statePath = filepath.Join(ctx.CharmDir, stateFileName)
	}
	st := unitstate.NewStore(unitstate.NewFileBackend(statePath))
	if err := st.Load(); err != nil {
		return errors.Trace(err)
	}

	return charmhook.Run(ch, meta, &charmhook.Deps{
		Context:  ctx,
		State:    st,
		Config:   config,
		Env:      tools,
		Services: service.NewManager("", r),
		Packages: packaging.NewApt(packaging.Config{
			Runner: r,
			Proxy:  proxySettings(getenv),
		}),
		Host:   host.New(r),
		Runner: r,
		Files:  render.AtomicFileWriter{},
	})
}

// exitCode maps a hook error to the process exit status. A failed command
// passes its own status on.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}

// Main runs the hook described by args and the environment, returning the
// exit status. The unit log is in place for the whole hook, so a failure
// is recorded there and sent to the agent.
func Main(args []string, getenv func(string) string) int {
	a, err := parseArgs(args, getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	ctx, err := hook.NewContextFromEnv(a.hookName, getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: reading hook context: %v\n", err)
		return 1
	}
	r := newRunner()
	tools := hookenv.NewTools(r)
	cleanup, err := logging.Setup(logging.Params{
		UnitName: ctx.UnitName,
		LogDir:   a.logDir,
		Config:   a.logConfig,
		Agent:    tools,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer cleanup()

	if err := run(a, ctx, r, tools, getenv); err != nil {
		logger.Errorf("%s hook failed: %v", a.hookName, err)
		return exitCode(err)
	}
	return 0
}

func main() {
	os.Exit(Main(os.Args, os.Getenv))
}
