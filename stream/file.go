package stream

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// FileOutputStream replaces the contents of a file on each Write. While writing it holds an
// exclusive lock on a companion ".lock" file, so that several aggregator processes pointed at
// the same path never interleave their output.
type FileOutputStream struct {
	path string
	lock *flock.Flock
}

func NewFileOutputStream(path string) *FileOutputStream {
	return &FileOutputStream{path: path, lock: flock.New(path + ".lock")}
}

func (s *FileOutputStream) Path() string { return s.path }

func (s *FileOutputStream) Write(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", s.path)
	}
	if err := s.lock.Lock(); err != nil {
		return errors.Wrapf(err, "failed to lock %s", s.lock.Path())
	}
	defer s.lock.Unlock()

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", s.path)
	}
	return nil
}

// Close removes the lock file.
func (s *FileOutputStream) Close() error {
	if err := os.Remove(s.lock.Path()); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove %s", s.lock.Path())
	}
	return nil
}
