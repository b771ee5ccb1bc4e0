package stream

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// UniqueNameFileOutputStream writes each chunk of data to a new file named <uuid>.<extension>
// in a directory.
type UniqueNameFileOutputStream struct {
	dir       string
	extension string
	lastPath  string
	lock      sync.Mutex
}

func NewUniqueNameFileOutputStream(dir, extension string) *UniqueNameFileOutputStream {
	return &UniqueNameFileOutputStream{dir: dir, extension: strings.TrimPrefix(extension, ".")}
}

func (s *UniqueNameFileOutputStream) Write(data []byte) error {
	_, err := s.WriteFile(data)
	return err
}

// WriteFile writes data to a new file and returns its path.
func (s *UniqueNameFileOutputStream) WriteFile(data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create directory %s", s.dir)
	}
	name := uuid.New().String()
	if s.extension != "" {
		name += "." + s.extension
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", path)
	}
	s.lock.Lock()
	s.lastPath = path
	s.lock.Unlock()
	return path, nil
}

// LastPath returns the path of the most recently written file, or "".
func (s *UniqueNameFileOutputStream) LastPath() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lastPath
}

func (s *UniqueNameFileOutputStream) Close() error { return nil }
