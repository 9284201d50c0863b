package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/irrigatectl/internal/errors"
)

const (
	pidFile = "irrigatectl.pid"
)

// File guards a single running dashboard per PID directory.
type File struct {
	path string
}

// New returns a PID file in dir. An empty dir falls back to os.TempDir().
func New(dir string) *File {
	if dir == "" {
		dir = os.TempDir()
	}
	return &File{path: filepath.Join(dir, pidFile)}
}

func (f *File) Path() string {
	return f.path
}

// Write writes the current process ID to the PID file. A file left behind by
// a process that is no longer alive is overwritten.
func (f *File) Write() error {
	errFactory := errors.New()
	pid := os.Getpid()

	if _, err := os.Stat(f.path); err == nil {
		// PID file exists, check if the process is running
		bytes, err := os.ReadFile(f.path)
		if err != nil {
			return errFactory.Wrap(errors.ErrInternal, err)
		}

		other, err := strconv.Atoi(strings.TrimSpace(string(bytes)))
		if err == nil && other != pid && alive(other) {
			return errFactory.WithData(errors.ErrAlreadyRunning, other)
		}
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return errFactory.Wrap(errors.ErrInitFailed, err)
	}

	err := os.WriteFile(f.path, []byte(strconv.Itoa(pid)), 0o600)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitFailed, err)
	}

	return nil
}

// Remove removes the PID file.
func (f *File) Remove() error {
	errFactory := errors.New()

	if _, err := os.Stat(f.path); os.IsNotExist(err) {
		return nil
	}

	if err := os.Remove(f.path); err != nil {
		return errFactory.Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}

func alive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
