// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package router implements the hooks of the cf-go-router charm.
package router

import (
	"embed"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"gopkg.in/juju/environschema.v1"

	"github.com/juju/cf-charms/core/unitstate"
	"github.com/juju/cf-charms/hook"
	"github.com/juju/cf-charms/internal/charmconfig"
	"github.com/juju/cf-charms/internal/charmhook"
	"github.com/juju/cf-charms/internal/hookenv"
	"github.com/juju/cf-charms/internal/ports"
	"github.com/juju/cf-charms/internal/render"
	"github.com/juju/cf-charms/service/common"
)

var logger = loggo.GetLogger("cfcharm.charms.router")

// Name is the charm name.
const Name = "cf-go-router"

var (
	//go:embed metadata.yaml
	metadata []byte

	//go:embed templates
	templates embed.FS
)

// Packages are installed by the install hook.
var Packages = []string{"cfgorouter", "cfgorouterjob"}

var (
	RouterDir  = filepath.Join(charmhook.CFDir, "cfgorouter")
	ConfigFile = filepath.Join(RouterDir, "config", "gorouter.yml")
)

const (
	LogDir = "/var/vcap/sys/log/gorouter"
	RunDir = "/var/vcap/sys/run/gorouter"

	// Service is the router's upstart job.
	Service = "cf-router"

	// ConfigRendered is reached once gorouter.yml is written.
	ConfigRendered unitstate.Milestone = "router_ok"
)

const (
	keyRouterPort     = "router_port"
	keyStatusPort     = "status_port"
	keyStatusUser     = "status_user"
	keyStatusPassword = "status_password"
)

// Charm describes the cf-go-router charm.
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
			keyRouterPort: {
				Description: "Port the router serves HTTP on.",
				Type:        environschema.Tint,
			},
			keyStatusPort: {
				Description: "Port of the router's status endpoint.",
				Type:        environschema.Tint,
			},
			keyStatusUser: {
				Description: "User for the status endpoint.",
				Type:        environschema.Tstring,
			},
			keyStatusPassword: {
				Description: "Password for the status endpoint.",
				Type:        environschema.Tstring,
				Secret:      true,
			},
		},
		Defaults: map[string]any{
			"source":          "ppa:cf-charm/ppa",
			"key":             "4C430C3C2828E07D",
			keyRouterPort:     80,
			keyStatusPort:     18080,
			keyStatusUser:     "router",
			keyStatusPassword: "",
		},
	},
	Handlers: handlers,
}

var configSpec = render.ConfigSpec{
	Name: "router",
	Required: append([]string{
		keyRouterPort, keyStatusPort, keyStatusUser, keyStatusPassword,
	}, charmhook.NATSKeys...),
	Template:  "gorouter.yml",
	Path:      ConfigFile,
	Perm:      0640,
	Milestone: ConfigRendered,
}

var job = charmhook.Job{
	Name: Service,
	Conf: common.Conf{
		Desc:      "Cloud Foundry router",
		ExecStart: filepath.Join(RouterDir, "bin", "router") + " -c " + ConfigFile,
		User:      charmhook.User,
		Group:     charmhook.Group,
		Logfile:   filepath.Join(LogDir, "gorouter.stdout.log"),
		Limit:     map[string]string{"nofile": "65536"},
		Manual:    true,
	},
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
		"nats-relation-changed": h.natsRelationChanged,
		"nats-relation-broken":  h.natsRelationBroken,
	}
}

func (h *handler) install() error {
	if err := charmhook.ExecdPreinstall(h.Deps); err != nil {
		return errors.Trace(err)
	}
	if err := charmhook.InstallPackages(h.Deps, Packages...); err != nil {
		return errors.Trace(err)
	}
	if err := h.Host.AddUser(charmhook.User); err != nil {
		return errors.Trace(err)
	}
	if err := charmhook.MakeDirs(h.Deps, RunDir, LogDir); err != nil {
		return errors.Trace(err)
	}
	if err := charmhook.ChownTrees(h.Deps); err != nil {
		return errors.Trace(err)
	}
	if err := charmhook.InstallJobs(h.Deps, job); err != nil {
		return errors.Trace(err)
	}
	h.assessStatus()
	return nil
}

// emit records the options the router config uses and renders it.
func (h *handler) emit() (render.Result, error) {
	for _, key := range []string{keyRouterPort, keyStatusPort} {
		if port := h.Config.Int(key); port > 0 {
			h.State.SetInt(key, port)
		} else {
			h.State.Delete(key)
		}
	}
	h.State.SetString(keyStatusUser, h.Config.String(keyStatusUser))
	h.State.SetString(keyStatusPassword, h.Config.String(keyStatusPassword))

	emitter, err := render.NewEmitter(templates, h.Files, "templates/*")
	if err != nil {
		return render.NotReady, errors.Trace(err)
	}
	return emitter.Emit(configSpec, h.State)
}

func (h *handler) configChanged() error {
	result, err := h.emit()
	if err != nil {
		return errors.Trace(err)
	}
	running, err := h.Services.Running(Service)
	if err != nil {
		return errors.Trace(err)
	}
	if running {
		if result.Changed() {
			if err := h.Services.Restart(Service); err != nil {
				return errors.Trace(err)
			}
		}
		if _, err := ports.Converge(h.State, h.Env, keyRouterPort, h.Config.Int(keyRouterPort)); err != nil {
			return errors.Trace(err)
		}
	}
	h.assessStatus()
	return nil
}

// start starts the router once its config is rendered and opens the
// router port.
func (h *handler) start() error {
	if !h.State.Reached(ConfigRendered) {
		logger.Infof("router config not rendered, not starting")
		h.assessStatus()
		return nil
	}
	if err := h.Services.Start(Service); err != nil {
		return errors.Trace(err)
	}
	if _, err := ports.Converge(h.State, h.Env, keyRouterPort, h.Config.Int(keyRouterPort)); err != nil {
		return errors.Trace(err)
	}
	h.assessStatus()
	return nil
}

func (h *handler) stop() error {
	if err := h.Services.Stop(Service); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(ports.Close(h.State, h.Env, keyRouterPort))
}

func (h *handler) natsRelationChanged() error {
	if _, err := charmhook.RecordNATS(h.Deps); err != nil {
		return errors.Trace(err)
	}
	result, err := h.emit()
	if err != nil {
		return errors.Trace(err)
	}
	if result.Changed() {
		if err := charmhook.RestartIfRunning(h.Deps, Service); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(h.start())
}

func (h *handler) natsRelationBroken() error {
	if err := h.stop(); err != nil {
		return errors.Trace(err)
	}
	charmhook.ForgetNATS(h.Deps)
	h.State.SetMilestone(ConfigRendered, false)
	h.assessStatus()
	return nil
}

func (h *handler) assessStatus() {
	running, err := h.Services.Running(Service)
	if err != nil {
		logger.Warningf("cannot check %s: %v", Service, err)
	}
	switch {
	case !h.State.Contains(charmhook.NATSAddress):
		h.SetStatus(hookenv.Waiting, "waiting for nats relation")
	case !h.State.Reached(ConfigRendered):
		h.SetStatus(hookenv.Maintenance, "configuring router")
	case !running:
		h.SetStatus(hookenv.Maintenance, "router stopped")
	default:
		h.SetStatus(hookenv.Active, "")
	}
}
