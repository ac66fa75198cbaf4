// Package daemon implements the PID file and run-directory steps of
// original_source/src/bitz-server.cpp's daemonize()/shutdown() pair.
// Backgrounding (fork()+setsid()+closing the standard fds) is not done
// here: the process stays in the foreground and no session is detached.
// The pidfile lock itself — lockf(F_TLOCK) in the original — becomes a plain
// O_EXCL create: no pack example reaches for golang.org/x/sys/unix.Flock,
// and O_EXCL gives the same single-instance guarantee without it (see
// DESIGN.md).
package daemon

import (
	"fmt"
	"os"
	"strconv"
)

// PIDFile holds the exclusively created pid file at path for the daemon's
// lifetime, the Go equivalent of bitz-server.cpp's globals.pid_handle. No
// OS-level lock is taken; the file's existence is the single-instance
// marker.
type PIDFile struct {
	path string
	f    *os.File
}

// AcquirePIDFile creates path exclusively and writes the current process's
// PID into it, failing if another instance already holds it — mirroring
// daemonize()'s open(O_RDWR|O_CREAT) + lockf(F_TLOCK) sequence.
func AcquirePIDFile(path string) (*PIDFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("daemon: pid file %s already exists (another instance running?)", path)
		}
		return nil, fmt.Errorf("daemon: could not open pid lock file %s: %w", path, err)
	}

	if _, err := f.WriteString(strconv.Itoa(os.Getpid()) + "\n"); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("daemon: could not write pid lock file %s: %w", path, err)
	}

	return &PIDFile{path: path, f: f}, nil
}

// Release closes and removes the pid file, mirroring shutdown()'s pid file
// cleanup.
func (p *PIDFile) Release() error {
	p.f.Close()
	return os.Remove(p.path)
}

// Chdir changes into rundir, mirroring daemonize()'s chdir(rundir) — run
// after acquiring the pid file if pidfile is a relative path resolved
// against the original working directory.
func Chdir(rundir string) error {
	if rundir == "" {
		return nil
	}
	return os.Chdir(rundir)
}
