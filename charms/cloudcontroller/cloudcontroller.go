// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package cloudcontroller implements the hooks of the cf-cloud-controller
// charm: the Cloud Foundry API server and the nginx in front of it.
package cloudcontroller

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
	"github.com/juju/cf-charms/internal/runner"
	"github.com/juju/cf-charms/service/common"
)

var logger = loggo.GetLogger("cfcharm.charms.cloudcontroller")

// Name is the charm name.
const Name = "cf-cloud-controller"

var (
	//go:embed metadata.yaml
	metadata []byte

	//go:embed templates
	templates embed.FS
)

// Packages are installed by the install hook.
var Packages = []string{"cfcloudcontroller", "cfcloudcontrollerjob"}

var (
	CCDir           = filepath.Join(charmhook.CFDir, "cfcloudcontroller")
	ConfigDir       = filepath.Join(CCDir, "jobs", "config")
	ConfigFile      = filepath.Join(ConfigDir, "cloud_controller_ng.yml")
	NginxConfigFile = filepath.Join(ConfigDir, "nginx.conf")
	DBFile          = filepath.Join(CCDir, "db", "cc.db")
)

const (
	LogDir      = "/var/vcap/sys/log/cloud_controller_ng"
	RunDir      = "/var/vcap/sys/run/cloud_controller_ng"
	NginxLogDir = "/var/vcap/sys/log/nginx_ccng"
	NginxRunDir = "/var/vcap/sys/run/nginx_ccng"
	FogDir      = "/var/vcap/nfs/store"
)

// Upstart jobs.
const (
	CCService    = "cf-cloudcontroller"
	NginxService = "cf-nginx"
)

// Milestones.
const (
	CCConfigRendered    unitstate.Milestone = "cc_ok"
	NginxConfigRendered unitstate.Milestone = "nginx_ok"
	DBMigrated          unitstate.Milestone = "ccdbmigrated"
)

// StartGate must be reached before the services start.
var StartGate = unitstate.Milestones{CCConfigRendered, DBMigrated}

// Unit state keys copied from configuration.
const (
	keyDomain          = "domain"
	keySystemDomain    = "system_domain"
	keySystemDomainOrg = "system_domain_organization"
	keyExternalDomain  = "external_domain"
	keyCCPort          = "cc_port"
	keyCCIP            = "cc_ip"
	keyNginxPort       = "nginx_port"
)

const defaultExternalDomain = "localhost"

// Charm describes the cf-cloud-controller charm.
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
			keyDomain: {
				Description: "Default domain for applications.",
				Type:        environschema.Tstring,
			},
			keySystemDomain: {
				Description: "Domain of the system components. The controller stays stopped until it is set.",
				Type:        environschema.Tstring,
			},
			keySystemDomainOrg: {
				Description: "Organization owning the system domain.",
				Type:        environschema.Tstring,
			},
			keyExternalDomain: {
				Description: "Domain the API is published under; localhost if empty.",
				Type:        environschema.Tstring,
			},
			keyCCPort: {
				Description: "Port the cloud controller listens on behind nginx.",
				Type:        environschema.Tint,
			},
			keyNginxPort: {
				Description: "Port nginx serves the API on.",
				Type:        environschema.Tint,
			},
		},
		Defaults: map[string]any{
			"source":           "ppa:cf-charm/ppa",
			"key":              "4C430C3C2828E07D",
			keyDomain:          "example.net",
			keySystemDomain:    "",
			keySystemDomainOrg: "",
			keyExternalDomain:  "",
			keyCCPort:          9022,
			keyNginxPort:       80,
		},
	},
	Handlers: handlers,
}

var nginxSpec = render.ConfigSpec{
	Name:      "nginx",
	Required:  []string{keyNginxPort, keyCCPort},
	Template:  "nginx.conf",
	Path:      NginxConfigFile,
	Milestone: NginxConfigRendered,
}

var ccSpec = render.ConfigSpec{
	Name: "cloud controller",
	Required: append([]string{
		keyDomain, keySystemDomainOrg, keyCCIP, keyExternalDomain,
		keySystemDomain, keyCCPort,
	}, charmhook.NATSKeys...),
	NonEmpty:  []string{keySystemDomain},
	Template:  "cloud_controller_ng.yml",
	Path:      ConfigFile,
	Milestone: CCConfigRendered,
}

func jobs() []charmhook.Job {
	return []charmhook.Job{{
		Name: CCService,
		Conf: common.Conf{
			Desc:      "Cloud Foundry cloud controller",
			ExecStart: "bundle exec bin/cloud_controller -m -c " + ConfigFile,
			Env:       map[string]string{"CLOUD_CONTROLLER_NG_CONFIG": ConfigFile},
			Limit:     map[string]string{"nofile": "65536"},
			User:      charmhook.User,
			Group:     charmhook.Group,
			Dir:       CCDir,
			Logfile:   filepath.Join(LogDir, "cloud_controller_ng_ctl.log"),
			Manual:    true,
		},
	}, {
		Name: NginxService,
		Conf: common.Conf{
			Desc:      "nginx for the Cloud Foundry cloud controller",
			ExecStart: "/usr/sbin/nginx -c " + NginxConfigFile,
			PreStart:  "mkdir -p " + NginxRunDir,
			Manual:    true,
		},
	}}
}

type handler struct {
	*charmhook.Deps
	emitter *render.Emitter
}

func handlers(d *charmhook.Deps) map[string]hook.Handler {
	h := &handler{Deps: d}
	return map[string]hook.Handler{
		"install":               h.install,
		"config-changed":        h.configChanged,
		"start":                 h.start,
		"stop":                  h.stop,
		"upgrade-charm":         h.install,
		"nats-relation-changed": h.natsRelationChanged,
		"nats-relation-broken":  h.natsRelationBroken,
	}
}

func (h *handler) emit(spec render.ConfigSpec) (render.Result, error) {
	if h.emitter == nil {
		emitter, err := render.NewEmitter(templates, h.Files, "templates/*")
		if err != nil {
			return render.NotReady, errors.Trace(err)
		}
		h.emitter = emitter
	}
	return h.emitter.Emit(spec, h.State)
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
	// Reinstalling must not truncate the database.
	if !h.Host.Exists(DBFile) {
		if err := h.Host.WriteFile(DBFile, nil, charmhook.User, charmhook.Group, charmhook.DirPerm); err != nil {
			return errors.Trace(err)
		}
	}
	if err := charmhook.MakeDirs(h.Deps,
		RunDir, NginxRunDir, LogDir, NginxLogDir,
		"/var/vcap/data/cloud_controller_ng/tmp/uploads",
		"/var/vcap/data/cloud_controller_ng/tmp/staged_droplet_uploads",
		FogDir,
	); err != nil {
		return errors.Trace(err)
	}
	if err := charmhook.ChownTrees(h.Deps); err != nil {
		return errors.Trace(err)
	}
	if err := charmhook.InstallJobs(h.Deps, jobs()...); err != nil {
		return errors.Trace(err)
	}
	// nginx runs as cf-nginx with the controller's config.
	if err := h.Host.RemoveSysVInit("nginx"); err != nil {
		return errors.Trace(err)
	}
	h.assessStatus()
	return nil
}

// syncConfig copies the options the templates use into unit state.
func (h *handler) syncConfig() error {
	h.State.SetString(keyDomain, h.Config.String(keyDomain))
	h.State.SetString(keySystemDomainOrg, h.Config.String(keySystemDomainOrg))
	h.State.SetString(keySystemDomain, h.Config.String(keySystemDomain))
	external := h.Config.String(keyExternalDomain)
	if external == "" {
		external = defaultExternalDomain
	}
	h.State.SetString(keyExternalDomain, external)
	if port := h.Config.Int(keyCCPort); port > 0 {
		h.State.SetInt(keyCCPort, port)
	} else {
		h.State.Delete(keyCCPort)
	}
	if port := h.Config.Int(keyNginxPort); port > 0 {
		h.State.SetInt(keyNginxPort, port)
	} else {
		h.State.Delete(keyNginxPort)
	}
	addr, err := h.Env.PrivateAddress()
	if err != nil {
		return errors.Trace(err)
	}
	h.State.SetString(keyCCIP, addr)
	return nil
}

// converge renders the controller config and runs the database
// migration once the config exists. The result tells whether the
// controller config is in place and whether it changed.
func (h *handler) converge() (render.Result, error) {
	if err := h.syncConfig(); err != nil {
		return render.NotReady, errors.Trace(err)
	}
	result, err := h.emit(ccSpec)
	if err != nil || !result.Ready() {
		return render.NotReady, errors.Trace(err)
	}
	if err := h.migrate(); err != nil {
		return render.NotReady, errors.Trace(err)
	}
	return result, nil
}

// migrate runs the database migration unless it already succeeded.
func (h *handler) migrate() error {
	if h.State.Reached(DBMigrated) {
		return nil
	}
	logger.Infof("starting db:migrate")
	h.SetStatus(hookenv.Maintenance, "migrating database")
	_, err := h.Runner.Run(runner.Command{
		Args: []string{
			"sudo", "-u", charmhook.User, "-g", charmhook.Group,
			"CLOUD_CONTROLLER_NG_CONFIG=" + ConfigFile,
			"bundle", "exec", "rake", "db:migrate",
		},
		Dir: CCDir,
	})
	if err != nil {
		return errors.Annotate(err, "migrating cloud controller database")
	}
	return errors.Trace(h.State.SetAndSave(string(DBMigrated), true))
}

func (h *handler) configChanged() error {
	if err := h.syncConfig(); err != nil {
		return errors.Trace(err)
	}
	if _, err := ports.Converge(h.State, h.Env, keyNginxPort, h.Config.Int(keyNginxPort)); err != nil {
		return errors.Trace(err)
	}
	nginx, err := h.emit(nginxSpec)
	if err != nil {
		return errors.Trace(err)
	}
	cc, err := h.converge()
	if err != nil {
		return errors.Trace(err)
	}
	if nginx.Changed() {
		if err := charmhook.RestartIfRunning(h.Deps, NginxService); err != nil {
			return errors.Trace(err)
		}
	}
	if cc.Changed() {
		if err := charmhook.RestartIfRunning(h.Deps, CCService); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(h.start())
}

// start starts the controller, then nginx, once the gate is reached.
func (h *handler) start() error {
	if pending := StartGate.Pending(h.State); len(pending) > 0 {
		logger.Infof("not starting, waiting for %v", pending)
		h.assessStatus()
		return nil
	}
	if err := charmhook.StartAll(h.Deps, CCService, NginxService); err != nil {
		return errors.Trace(err)
	}
	if _, err := ports.Converge(h.State, h.Env, keyNginxPort, h.Config.Int(keyNginxPort)); err != nil {
		return errors.Trace(err)
	}
	h.assessStatus()
	return nil
}

func (h *handler) stop() error {
	if err := charmhook.StopAll(h.Deps, NginxService, CCService); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(ports.Close(h.State, h.Env, keyNginxPort))
}

func (h *handler) natsRelationChanged() error {
	complete, err := charmhook.RecordNATS(h.Deps)
	if err != nil {
		return errors.Trace(err)
	}
	if !complete {
		logger.Infof("nats relation settings incomplete")
	}
	cc, err := h.converge()
	if err != nil || !cc.Ready() {
		h.assessStatus()
		return errors.Trace(err)
	}
	if cc.Changed() {
		if err := charmhook.RestartIfRunning(h.Deps, CCService); err != nil {
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
	h.State.SetMilestone(CCConfigRendered, false)
	h.assessStatus()
	return nil
}

func (h *handler) assessStatus() {
	switch {
	case h.Config.String(keySystemDomain) == "":
		h.SetStatus(hookenv.Blocked, "system_domain must be set")
	case !h.State.Contains(charmhook.NATSAddress):
		h.SetStatus(hookenv.Waiting, "waiting for nats relation")
	case !StartGate.AllReached(h.State):
		h.SetStatus(hookenv.Maintenance, "configuring cloud controller")
	default:
		h.SetStatus(hookenv.Active, "")
	}
}
