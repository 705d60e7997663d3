// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package host manages the users, directories and files a charm lays
// down on its machine.
package host

import (
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/utils/v4"

	"github.com/juju/cf-charms/internal/runner"
)

var logger = loggo.GetLogger("cfcharm.host")

// SysVInitDir holds the SysV init scripts.
const SysVInitDir = "/etc/init.d"

var (
	lookupUser  = user.Lookup
	lookupGroup = user.LookupGroup
	lchown      = os.Lchown
)

// Host performs file system and account changes on the local machine.
type Host struct {
	runner      runner.Runner
	sysvInitDir string
}

// New returns a Host that runs system tools with r.
func New(r runner.Runner) *Host {
	return &Host{runner: r, sysvInitDir: SysVInitDir}
}

// WithSysVInitDir returns a copy of h that looks for SysV init scripts
// in dir.
func (h *Host) WithSysVInitDir(dir string) *Host {
	copied := *h
	copied.sysvInitDir = dir
	return &copied
}

// AddUser creates the account name with a home directory, unless it
// already exists.
func (h *Host) AddUser(name string) error {
	if _, err := lookupUser(name); err == nil {
		logger.Debugf("user %q already exists", name)
		return nil
	}
	logger.Infof("creating user %q", name)
	_, err := runner.Run(h.runner, "useradd", "--create-home", "--shell", "/bin/bash", name)
	return errors.Annotatef(err, "adding user %q", name)
}

func ids(owner, group string) (int, int, error) {
	u, err := lookupUser(owner)
	if err != nil {
		return 0, 0, errors.Annotatef(err, "looking up user %q", owner)
	}
	g, err := lookupGroup(group)
	if err != nil {
		return 0, 0, errors.Annotatef(err, "looking up group %q", group)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, errors.NotValidf("uid %q of user %q", u.Uid, owner)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, 0, errors.NotValidf("gid %q of group %q", g.Gid, group)
	}
	return uid, gid, nil
}

// Chown sets the owner and group of path.
func (h *Host) Chown(path, owner, group string) error {
	uid, gid, err := ids(owner, group)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(lchown(path, uid, gid))
}

// Chownr sets the owner and group of path and everything below it.
// Symbolic links are changed, not followed.
func (h *Host) Chownr(path, owner, group string) error {
	uid, gid, err := ids(owner, group)
	if err != nil {
		return errors.Trace(err)
	}
	err = filepath.WalkDir(path, func(p string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return lchown(p, uid, gid)
	})
	return errors.Annotatef(err, "changing ownership of %q", path)
}

// MkdirAll creates path and any missing parents, then sets the mode and
// ownership of path.
func (h *Host) MkdirAll(path, owner, group string, perm os.FileMode) error {
	if err := os.MkdirAll(path, perm); err != nil {
		return errors.Trace(err)
	}
	if err := os.Chmod(path, perm); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(h.Chown(path, owner, group))
}

// WriteFile atomically replaces path with data and sets its ownership.
func (h *Host) WriteFile(path string, data []byte, owner, group string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Trace(err)
	}
	if err := utils.AtomicWriteFile(path, data, perm); err != nil {
		return errors.Annotatef(err, "writing %q", path)
	}
	return errors.Trace(h.Chown(path, owner, group))
}

// Exists reports whether path exists.
func (h *Host) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// RemoveSysVInit disables and deletes the SysV init script for name so
// that an upstart job can own the daemon. It does nothing if there is no
// such script.
func (h *Host) RemoveSysVInit(name string) error {
	script := filepath.Join(h.sysvInitDir, name)
	if !h.Exists(script) {
		return nil
	}
	logger.Infof("removing SysV init script for %s", name)
	if _, err := runner.Run(h.runner, "update-rc.d", "-f", name, "remove"); err != nil {
		return errors.Trace(err)
	}
	// The daemon may not be running.
	if _, _, err := runner.RunAllowFail(h.runner, "service", name, "stop"); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(os.Remove(script))
}

// Download fetches url into dest unless dest already exists. The fetch
// goes to a partial file next to dest, which is renamed over dest only
// once complete.
func (h *Host) Download(url, dest string) error {
	if h.Exists(dest) {
		logger.Debugf("%s already downloaded", dest)
		return nil
	}
	logger.Infof("downloading %s", url)
	partial := dest + ".partial"
	if _, err := runner.Run(h.runner, "wget", "--quiet", "--output-document", partial, url); err != nil {
		if rmErr := os.Remove(partial); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warningf("cannot remove %s: %v", partial, rmErr)
		}
		return errors.Annotatef(err, "downloading %q", url)
	}
	if err := os.Rename(partial, dest); err != nil {
		return errors.Annotatef(err, "downloading %q", url)
	}
	if info, err := os.Stat(dest); err == nil {
		logger.Infof("downloaded %s (%s)", dest, humanize.IBytes(uint64(info.Size())))
	}
	return nil
}

// ReplaceTree removes dst and copies the tree rooted at src in its place.
func (h *Host) ReplaceTree(src, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return errors.Trace(err)
	}
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return utils.CopyFile(target, p)
	})
	return errors.Annotatef(err, "copying %q to %q", src, dst)
}

// Symlink makes link point at target, replacing whatever link was.
func (h *Host) Symlink(target, link string) error {
	if current, err := os.Readlink(link); err == nil && current == target {
		return nil
	}
	if err := os.RemoveAll(link); err != nil {
		return errors.Trace(err)
	}
	if err := os.MkdirAll(filepath.Dir(link), 0755); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(os.Symlink(target, link))
}

// RemoveAll removes path and anything below it.
func (h *Host) RemoveAll(path string) error {
	return errors.Trace(os.RemoveAll(path))
}
