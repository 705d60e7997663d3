// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package packaging installs the Debian packages a charm needs.
package packaging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/mutex/v2"
	"github.com/juju/os/v2/series"
	"github.com/juju/proxy"
	"github.com/juju/retry"
	"github.com/juju/utils/v4"

	"github.com/juju/cf-charms/internal/runner"
)

var logger = loggo.GetLogger("cfcharm.packaging")

const (
	// DefaultLockName names the host-wide lock held while apt runs.
	DefaultLockName = "cfcharm-apt"

	// DefaultKeyServer is where signing keys given by id are fetched.
	DefaultKeyServer = "hkp://keyserver.ubuntu.com:80"

	// aptExitCode is returned by apt-get when it cannot take the dpkg
	// lock or fetch an archive; both are usually transient.
	aptExitCode = 100

	cloudArchiveURL = "http://ubuntu-cloud.archive.canonical.com/ubuntu"
	archiveURL      = "http://archive.ubuntu.com/ubuntu"
)

// aptGetArgs keep dpkg from prompting or replacing changed config files.
var aptGetArgs = []string{
	"apt-get",
	"--option=Dpkg::Options::=--force-confold",
	"--option=Dpkg::options::=--force-unsafe-io",
	"--assume-yes",
	"--quiet",
}

var (
	acquireLock = mutex.Acquire
	hostSeries  = series.HostSeries
)

// Config holds the settings for an Apt.
type Config struct {
	// Runner runs apt and its helpers.
	Runner runner.Runner

	// Clock is used for retry delays and lock polling.
	Clock clock.Clock

	// Proxy is exported to apt-get.
	Proxy proxy.Settings

	// LockName names the host-wide mutex; empty means DefaultLockName.
	LockName string

	// Attempts and RetryDelay control retries of transient apt failures.
	Attempts   int
	RetryDelay time.Duration

	// SourcesDir is the apt sources.list.d directory.
	SourcesDir string
}

// Apt manages packages with apt-get.
type Apt struct {
	config Config
}

// NewApt returns an Apt for config, filling in defaults.
func NewApt(config Config) *Apt {
	if config.Clock == nil {
		config.Clock = clock.WallClock
	}
	if config.LockName == "" {
		config.LockName = DefaultLockName
	}
	if config.Attempts == 0 {
		config.Attempts = 30
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 10 * time.Second
	}
	if config.SourcesDir == "" {
		config.SourcesDir = "/etc/apt/sources.list.d"
	}
	return &Apt{config: config}
}

func (a *Apt) lock() (mutex.Releaser, error) {
	releaser, err := acquireLock(mutex.Spec{
		Name:    a.config.LockName,
		Clock:   a.config.Clock,
		Delay:   250 * time.Millisecond,
		Timeout: 10 * time.Minute,
	})
	return releaser, errors.Annotate(err, "acquiring apt lock")
}

// AddSource adds an archive to apt's sources and imports its signing key.
// Supported sources are "ppa:...", "deb ...", "http..." URLs,
// "cloud-archive:...", "cloud:<series>-<release>", "proposed" and
// "distro". An empty source means distro.
func (a *Apt) AddSource(source, key string) error {
	switch {
	case source == "" || source == "distro":
		return nil
	case strings.HasPrefix(source, "ppa:"),
		strings.HasPrefix(source, "http"),
		strings.HasPrefix(source, "deb "),
		strings.HasPrefix(source, "cloud-archive:"):
		if _, err := a.run(runner.Command{Args: []string{"add-apt-repository", "--yes", source}}); err != nil {
			return errors.Annotatef(err, "adding source %q", source)
		}
	case strings.HasPrefix(source, "cloud:"):
		if err := a.addCloudArchive(strings.TrimPrefix(source, "cloud:")); err != nil {
			return errors.Trace(err)
		}
	case source == "proposed":
		hs, err := hostSeries()
		if err != nil {
			return errors.Trace(err)
		}
		line := fmt.Sprintf("deb %s %s-proposed main universe multiverse restricted\n", archiveURL, hs)
		if err := a.writeSourceList("proposed.list", line); err != nil {
			return errors.Trace(err)
		}
	default:
		return errors.NotValidf("apt source %q", source)
	}
	if key == "" {
		return nil
	}
	return errors.Annotatef(a.importKey(key), "importing key for %q", source)
}

func (a *Apt) addCloudArchive(pocket string) error {
	seriesName, release, ok := strings.Cut(pocket, "-")
	if !ok || release == "" {
		return errors.NotValidf("cloud archive pocket %q", pocket)
	}
	hs, err := hostSeries()
	if err != nil {
		return errors.Trace(err)
	}
	if hs != seriesName {
		return errors.NotValidf("cloud archive for %q on %q host", seriesName, hs)
	}
	if err := a.Install("ubuntu-cloud-keyring"); err != nil {
		return errors.Trace(err)
	}
	line := fmt.Sprintf("deb %s %s-updates/%s main\n", cloudArchiveURL, seriesName, release)
	return errors.Trace(a.writeSourceList("cloud-archive.list", line))
}

func (a *Apt) writeSourceList(name, line string) error {
	path := filepath.Join(a.config.SourcesDir, name)
	logger.Infof("writing apt source %s", path)
	return errors.Trace(utils.AtomicWriteFile(path, []byte(line), 0644))
}

func (a *Apt) importKey(key string) error {
	if strings.Contains(key, "-----BEGIN PGP PUBLIC KEY BLOCK-----") {
		f, err := os.CreateTemp("", "cfcharm-key-")
		if err != nil {
			return errors.Trace(err)
		}
		defer os.Remove(f.Name())
		if _, err := f.WriteString(key); err != nil {
			f.Close()
			return errors.Trace(err)
		}
		if err := f.Close(); err != nil {
			return errors.Trace(err)
		}
		_, err = a.run(runner.Command{Args: []string{"apt-key", "add", f.Name()}})
		return errors.Trace(err)
	}
	_, err := a.run(runner.Command{Args: []string{
		"apt-key", "adv", "--keyserver", DefaultKeyServer, "--recv-keys", key,
	}})
	return errors.Trace(err)
}

// Update refreshes the package index.
func (a *Apt) Update() error {
	return errors.Annotate(a.aptGet("update"), "updating package index")
}

// FilterInstalled returns the packages in pkgs that are not installed,
// preserving their order.
func (a *Apt) FilterInstalled(pkgs ...string) ([]string, error) {
	if len(pkgs) == 0 {
		return nil, nil
	}
	args := append([]string{"dpkg-query", "--show", "--showformat=${Package} ${Status}\\n"}, pkgs...)
	// dpkg-query exits 1 when some packages are unknown.
	out, _, err := runner.RunAllowFail(a.config.Runner, args...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	installed := set.NewStrings()
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 4 && fields[3] == "installed" {
			installed.Add(fields[0])
		}
	}
	var missing []string
	for _, pkg := range pkgs {
		if !installed.Contains(pkg) {
			missing = append(missing, pkg)
		}
	}
	return missing, nil
}

// Install installs pkgs, skipping those already installed.
func (a *Apt) Install(pkgs ...string) error {
	missing, err := a.FilterInstalled(pkgs...)
	if err != nil {
		return errors.Trace(err)
	}
	if len(missing) == 0 {
		logger.Debugf("packages %v already installed", pkgs)
		return nil
	}
	logger.Infof("installing %s", strings.Join(missing, " "))
	args := append([]string{"install"}, missing...)
	return errors.Annotatef(a.aptGet(args...), "installing %v", missing)
}

func (a *Apt) aptGet(args ...string) error {
	releaser, err := a.lock()
	if err != nil {
		return errors.Trace(err)
	}
	defer releaser.Release()

	cmd := runner.Command{
		Args: append(append([]string{}, aptGetArgs...), args...),
		Env:  append([]string{"DEBIAN_FRONTEND=noninteractive"}, a.config.Proxy.AsEnvironmentValues()...),
	}
	err = retry.Call(retry.CallArgs{
		Func: func() error {
			_, err := a.config.Runner.Run(cmd)
			return err
		},
		IsFatalError: func(err error) bool {
			return !runner.IsExitCode(err, aptExitCode)
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Warningf("%s failed (attempt %d): %v", cmd, attempt, err)
		},
		Attempts: a.config.Attempts,
		Delay:    a.config.RetryDelay,
		Clock:    a.config.Clock,
	})
	if retry.IsAttemptsExceeded(err) {
		err = retry.LastError(err)
	}
	return errors.Trace(err)
}

func (a *Apt) run(cmd runner.Command) (string, error) {
	cmd.Env = append(cmd.Env, a.config.Proxy.AsEnvironmentValues()...)
	return a.config.Runner.Run(cmd)
}
