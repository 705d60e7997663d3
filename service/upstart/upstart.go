// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package upstart

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"text/template"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/utils/v4"

	"github.com/juju/cf-charms/internal/runner"
	"github.com/juju/cf-charms/service/common"
)

var logger = loggo.GetLogger("cfcharm.service.upstart")

// InitDir is the default upstart job directory.
const InitDir = "/etc/init"

var servicesRe = regexp.MustCompile(`^([a-zA-Z0-9-_:]+)\.conf$`)

var startedRE = regexp.MustCompile(`^.* start/running(?:, process (\d+))?\n$`)

// ListServices returns the names of the upstart jobs in initDir.
func ListServices(initDir string) ([]string, error) {
	entries, err := os.ReadDir(initDir)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var services []string
	for _, entry := range entries {
		if groups := servicesRe.FindStringSubmatch(entry.Name()); len(groups) > 0 {
			services = append(services, groups[1])
		}
	}
	return services, nil
}

// Service provides visibility into and control over an upstart service.
type Service struct {
	name    string
	conf    common.Conf
	initDir string
	runner  runner.Runner
}

// NewService returns a Service for the job called name in initDir,
// controlled through r.
func NewService(name string, conf common.Conf, initDir string, r runner.Runner) *Service {
	if initDir == "" {
		initDir = InitDir
	}
	return &Service{
		name:    name,
		conf:    conf,
		initDir: initDir,
		runner:  r,
	}
}

// Name returns the job name.
func (s *Service) Name() string {
	return s.name
}

// Conf returns the job definition.
func (s *Service) Conf() common.Conf {
	return s.conf
}

// confPath returns the path to the service's configuration file.
func (s *Service) confPath() string {
	return filepath.Join(s.initDir, s.name+".conf")
}

// Validate returns an error if the service is not adequately defined.
func (s *Service) Validate() error {
	if !servicesRe.MatchString(s.name + ".conf") {
		return errors.NotValidf("service name %q", s.name)
	}
	return errors.Annotatef(s.conf.Validate(), "service %q", s.name)
}

// render returns the upstart configuration for the service as a slice of bytes.
func (s *Service) render() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return Serialize(s.conf)
}

// Installed returns whether the service configuration exists in the
// init directory.
func (s *Service) Installed() (bool, error) {
	_, err := os.Stat(s.confPath())
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Trace(err)
	}
	return true, nil
}

// Exists returns whether the service configuration exists in the
// init directory with the same content that this Service would have
// if installed.
func (s *Service) Exists() (bool, error) {
	_, same, _, err := s.existsAndSame()
	if err != nil {
		return false, errors.Trace(err)
	}
	return same, nil
}

func (s *Service) existsAndSame() (exists, same bool, conf []byte, err error) {
	expected, err := s.render()
	if err != nil {
		return false, false, nil, errors.Trace(err)
	}
	current, err := os.ReadFile(s.confPath())
	if err != nil {
		if os.IsNotExist(err) {
			return false, false, expected, nil
		}
		return false, false, nil, errors.Trace(err)
	}
	return true, bytes.Equal(current, expected), expected, nil
}

// Running returns true if the Service appears to be running.
func (s *Service) Running() (bool, error) {
	out, code, err := runner.RunAllowFail(s.runner, "status", s.name)
	if err != nil {
		return false, errors.Trace(err)
	}
	logger.Tracef("status %s: %q", s.name, out)
	if code != 0 {
		// Unknown jobs exit 1.
		return false, nil
	}
	return startedRE.MatchString(out), nil
}

// Start starts the service if it is not already running.
func (s *Service) Start() error {
	running, err := s.Running()
	if err != nil {
		return errors.Trace(err)
	}
	if running {
		return nil
	}
	logger.Infof("starting %s", s.name)
	if _, err := runner.Run(s.runner, "start", s.name); err != nil {
		// Double check to see if we were started before our command ran.
		if running, _ := s.Running(); running {
			return nil
		}
		return errors.Trace(err)
	}
	return nil
}

// Stop stops the service if it is running.
func (s *Service) Stop() error {
	running, err := s.Running()
	if err != nil {
		return errors.Trace(err)
	}
	if !running {
		return nil
	}
	logger.Infof("stopping %s", s.name)
	_, err = runner.Run(s.runner, "stop", s.name)
	return errors.Trace(err)
}

// Restart restarts the service, starting it if it was stopped.
func (s *Service) Restart() error {
	running, err := s.Running()
	if err != nil {
		return errors.Trace(err)
	}
	if !running {
		return s.Start()
	}
	logger.Infof("restarting %s", s.name)
	_, err = runner.Run(s.runner, "restart", s.name)
	return errors.Trace(err)
}

// Remove deletes the service configuration from the init directory.
func (s *Service) Remove() error {
	installed, err := s.Installed()
	if err != nil {
		return errors.Trace(err)
	}
	if !installed {
		return nil
	}
	return errors.Trace(os.Remove(s.confPath()))
}

// Install writes the service configuration to the init directory. An
// existing job with different content is stopped and replaced.
func (s *Service) Install() error {
	exists, same, conf, err := s.existsAndSame()
	if err != nil {
		return errors.Trace(err)
	}
	if same {
		return nil
	}
	if exists {
		if err := s.Stop(); err != nil {
			return errors.Annotate(err, "upstart: could not stop installed service")
		}
	}
	logger.Infof("installing upstart job %s", s.confPath())
	return errors.Trace(utils.AtomicWriteFile(s.confPath(), conf, 0644))
}

// Serialize renders the conf as raw bytes.
func Serialize(conf common.Conf) ([]byte, error) {
	var buf bytes.Buffer
	if err := confT.Execute(&buf, conf); err != nil {
		return nil, errors.Trace(err)
	}
	return buf.Bytes(), nil
}

// BUG: %q quoting does not necessarily match libnih quoting rules
// (as used by upstart); this may become an issue in the future.
var confT = template.Must(template.New("").Parse(`
description "{{.Desc}}"
{{if not .Manual}}start on runlevel [2345]
{{end}}stop on runlevel [!2345]
respawn
normal exit 0
{{if .User}}setuid {{.User}}
{{end}}{{if .Group}}setgid {{.Group}}
{{end}}{{if .Dir}}chdir {{.Dir}}
{{end}}{{range $k, $v := .Env}}env {{$k}}={{$v|printf "%q"}}
{{end}}{{range $k, $v := .Limit}}limit {{$k}} {{$v}} {{$v}}
{{end}}{{if .PreStart}}
pre-start script
{{.PreStart}}
end script
{{end}}
script
{{if .Logfile}}  exec {{.ExecStart}} >> {{.Logfile}} 2>&1
{{else}}  exec {{.ExecStart}}
{{end}}end script
`[1:]))
