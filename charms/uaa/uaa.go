// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package uaa implements the hooks of the cf-uaa charm: the UAA server in
// tomcat and the registrar announcing it to the router.
package uaa

import (
	"embed"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"gopkg.in/juju/environschema.v1"

	"github.com/juju/cf-charms/core/unitstate"
	"github.com/juju/cf-charms/hook"
	"github.com/juju/cf-charms/internal/charmconfig"
	"github.com/juju/cf-charms/internal/charmhook"
	"github.com/juju/cf-charms/internal/hookenv"
	"github.com/juju/cf-charms/internal/render"
	"github.com/juju/cf-charms/service/common"
)

var logger = loggo.GetLogger("cfcharm.charms.uaa")

// Name is the charm name.
const Name = "cf-uaa"

var (
	//go:embed metadata.yaml
	metadata []byte

	//go:embed templates
	templates embed.FS
)

// Packages are installed by the install hook.
var Packages = []string{"cfuaa", "cfuaajob", "cfregistrar"}

var (
	UAADir              = filepath.Join(charmhook.CFDir, "cfuaa")
	ConfigPath          = filepath.Join(UAADir, "jobs", "config")
	UAAConfigFile       = filepath.Join(ConfigPath, "uaa.yml")
	VarzConfigFile      = filepath.Join(ConfigPath, "varz.yml")
	RegistrarConfigFile = filepath.Join(charmhook.CFDir, "cfregistrar", "config", "config.yml")
	TomcatHome          = filepath.Join(UAADir, "tomcat")
	SQLiteJDBCJar       = filepath.Join(TomcatHome, "lib", "sqlite-jdbc-3.7.2.jar")
)

const (
	RunDir  = "/var/vcap/sys/run/uaa"
	LogDir  = "/var/vcap/sys/log/uaa"
	JobsDir = "/var/vcap/jobs/uaa"

	SQLiteJDBCURL = "https://bitbucket.org/xerial/sqlite-jdbc/downloads/sqlite-jdbc-3.7.2.jar"
)

// Upstart jobs.
const (
	UAAService       = "cf-uaa"
	RegistrarService = "cf-registrar"
)

// Milestones.
const (
	VarzRendered      unitstate.Milestone = "varz_ok"
	RegistrarRendered unitstate.Milestone = "registrar_ok"
	UAARendered       unitstate.Milestone = "uaa_ok"
)

// StartGate must be reached before the services start.
var StartGate = unitstate.Milestones{VarzRendered, RegistrarRendered, UAARendered}

const (
	keyVarzUser     = "varz_user"
	keyVarzPassword = "varz_password"
	keyUAAIP        = "uaa_ip"
	keyDomain       = "domain"
)

// settings are looked up on the nats relation first, then in config.
var settings = append(append([]string{}, charmhook.NATSKeys...),
	keyVarzUser, keyVarzPassword, keyDomain)

// userSettings must come from config for UAA to start.
var userSettings = []string{keyVarzUser, keyVarzPassword, keyDomain}

// Charm describes the cf-uaa charm.
var Charm = charmhook.Charm{
	Name:     Name,
	Metadata: metadata,
	Schema: charmconfig.Schema{
		Fields: environschema.Fields{
			"source": {
				Description: "Apt source of the Cloud Foundry packages.",
				Type:        environschema.Tstring,
			},
			"key": {
				Description: "Signing key of the apt source.",
				Type:        environschema.Tstring,
			},
			charmhook.NATSAddress: {
				Description: "NATS address used when no nats relation provides one.",
				Type:        environschema.Tstring,
			},
			charmhook.NATSPort: {
				Description: "NATS port used when no nats relation provides one.",
				Type:        environschema.Tint,
			},
			charmhook.NATSUser: {
				Description: "NATS user used when no nats relation provides one.",
				Type:        environschema.Tstring,
			},
			charmhook.NATSPassword: {
				Description: "NATS password used when no nats relation provides one.",
				Type:        environschema.Tstring,
				Secret:      true,
			},
			keyVarzUser: {
				Description: "User for the varz endpoint.",
				Type:        environschema.Tstring,
			},
			keyVarzPassword: {
				Description: "Password for the varz endpoint.",
				Type:        environschema.Tstring,
				Secret:      true,
			},
			keyDomain: {
				Description: "Domain UAA registers uaa.<domain> and login.<domain> under.",
				Type:        environschema.Tstring,
			},
		},
		Defaults: map[string]any{
			"source":        "ppa:cf-charm/ppa",
			"key":           "4C430C3C2828E07D",
			keyVarzUser:     "varz",
			keyVarzPassword: "",
			keyDomain:       "",
		},
	},
	Handlers: handlers,
}

var specs = []render.ConfigSpec{{
	Name: "registrar",
	Required: append(append([]string{}, charmhook.NATSKeys...),
		keyVarzUser, keyVarzPassword, keyUAAIP, keyDomain),
	Template:  "registrar.yml",
	Path:      RegistrarConfigFile,
	Perm:      0640,
	Milestone: RegistrarRendered,
}, {
	Name:      "varz",
	Required:  []string{keyVarzPassword, keyVarzUser},
	Template:  "varz.yml",
	Path:      VarzConfigFile,
	Perm:      0640,
	Milestone: VarzRendered,
}, {
	Name:      "uaa",
	Template:  "uaa.yml",
	Path:      UAAConfigFile,
	Milestone: UAARendered,
}}

func jobs() []charmhook.Job {
	return []charmhook.Job{{
		Name: UAAService,
		Conf: common.Conf{
			Desc:      "Cloud Foundry UAA",
			ExecStart: filepath.Join(TomcatHome, "bin", "catalina.sh") + " run",
			Env: map[string]string{
				"CATALINA_HOME":   TomcatHome,
				"CATALINA_BASE":   TomcatHome,
				"UAA_CONFIG_PATH": ConfigPath,
			},
			User:    charmhook.User,
			Group:   charmhook.Group,
			Logfile: filepath.Join(LogDir, "uaa.log"),
			Manual:  true,
		},
	}, {
		Name: RegistrarService,
		Conf: common.Conf{
			Desc:      "Cloud Foundry registrar for UAA",
			ExecStart: filepath.Join(charmhook.CFDir, "cfregistrar", "bin", "cf-registrar") + " --config " + RegistrarConfigFile,
			User:      charmhook.User,
			Group:     charmhook.Group,
			Logfile:   filepath.Join(LogDir, "cf-registrar.stdout.log"),
			Manual:    true,
		},
	}}
}

type handler struct {
	*charmhook.Deps
}

func handlers(d *charmhook.Deps) map[string]hook.Handler {
	h := &handler{Deps: d}
	return map[string]hook.Handler{
		"install":               h.install,
		"upgrade-charm":         h.install,
		"config-changed":        h.configChanged,
		"start":                 h.start,
		"stop":                  h.stop,
		"nats-relation-changed": h.configChanged,
		"nats-relation-broken":  h.configChanged,
		"uaa-relation-joined":   h.uaaRelationJoined,
	}
}

func (h *handler) install() error {
	if err := charmhook.InstallPackages(h.Deps, Packages...); err != nil {
		return errors.Trace(err)
	}
	if err := h.Host.AddUser(charmhook.User); err != nil {
		return errors.Trace(err)
	}
	if err := charmhook.InstallJobs(h.Deps, jobs()...); err != nil {
		return errors.Trace(err)
	}
	// cf-uaa runs its own tomcat.
	if err := h.Host.RemoveSysVInit("tomcat7"); err != nil {
		return errors.Trace(err)
	}
	if err := charmhook.MakeDirs(h.Deps, RunDir, LogDir, JobsDir); err != nil {
		return errors.Trace(err)
	}
	if err := h.Host.Download(SQLiteJDBCURL, SQLiteJDBCJar); err != nil {
		return errors.Trace(err)
	}
	logger.Debugf("replacing %s", ConfigPath)
	src := filepath.Join(h.Context.CharmDir, "files", "config")
	if err := h.Host.ReplaceTree(src, ConfigPath); err != nil {
		return errors.Trace(err)
	}
	if err := h.Host.Symlink(ConfigPath, filepath.Join(JobsDir, "config")); err != nil {
		return errors.Trace(err)
	}
	if err := charmhook.ChownTrees(h.Deps); err != nil {
		return errors.Trace(err)
	}
	h.assessStatus()
	return nil
}

// configChanged records every setting and renders the configs. The
// services are restarted only when a config changed or one is no longer
// ready. Relation changes rerun it.
func (h *handler) configChanged() error {
	StartGate.Reset(h.State)
	for _, key := range settings {
		value, ok, err := charmhook.Lookup(h.Deps, "nats", key)
		if err != nil {
			return errors.Trace(err)
		}
		if !ok {
			logger.Debugf("%s not set", key)
			h.State.Delete(key)
			continue
		}
		if s, isString := value.(string); isString && key == charmhook.NATSPort {
			if port, err := strconv.Atoi(s); err == nil {
				value = port
			}
		}
		if err := h.State.Set(key, value); err != nil {
			return errors.Trace(err)
		}
	}
	addr, err := h.Env.PrivateAddress()
	if err != nil {
		return errors.Trace(err)
	}
	h.State.SetString(keyUAAIP, addr)
	if err := h.State.Save(); err != nil {
		return errors.Trace(err)
	}

	emitter, err := render.NewEmitter(templates, h.Files, "templates/*")
	if err != nil {
		return errors.Trace(err)
	}
	changed := false
	for _, spec := range specs {
		result, err := emitter.Emit(spec, h.State)
		if err != nil {
			return errors.Trace(err)
		}
		changed = changed || result.Changed()
	}
	if changed || !StartGate.AllReached(h.State) {
		if err := h.stop(); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(h.start())
}

func (h *handler) start() error {
	if pending := StartGate.Pending(h.State); len(pending) > 0 {
		logger.Infof("not all configs are rendered, waiting for %v", pending)
		h.assessStatus()
		return nil
	}
	if err := charmhook.StartAll(h.Deps, UAAService, RegistrarService); err != nil {
		return errors.Trace(err)
	}
	h.assessStatus()
	return nil
}

func (h *handler) stop() error {
	return errors.Trace(charmhook.StopAll(h.Deps, UAAService, RegistrarService))
}

func (h *handler) uaaRelationJoined() error {
	logger.Debugf("uaa relation joined by %s", h.Context.RemoteUnitName)
	return nil
}

func (h *handler) assessStatus() {
	var missing []string
	for _, key := range userSettings {
		if h.Config.String(key) == "" {
			missing = append(missing, key)
		}
	}
	switch {
	case len(missing) > 0:
		h.SetStatus(hookenv.Blocked, "missing config: "+strings.Join(missing, ", "))
	case !h.State.Contains(charmhook.NATSAddress):
		h.SetStatus(hookenv.Waiting, "waiting for nats relation")
	case !StartGate.AllReached(h.State):
		h.SetStatus(hookenv.Maintenance, "rendering configuration")
	default:
		h.SetStatus(hookenv.Active, "")
	}
}
