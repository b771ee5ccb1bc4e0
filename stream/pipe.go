package stream

import (
	"os"

	"github.com/pkg/errors"
)

// NamedPipeOutputStream writes to a named pipe that a report reader has already created. Each
// Write opens the pipe, which blocks until the reader has it open, writes everything and
// closes it again so that the reader sees end of file.
type NamedPipeOutputStream struct {
	path string
}

func NewNamedPipeOutputStream(path string) *NamedPipeOutputStream {
	return &NamedPipeOutputStream{path: path}
}

func (s *NamedPipeOutputStream) Write(data []byte) error {
	info, err := os.Stat(s.path)
	if err != nil {
		return errors.Wrapf(err, "report pipe %s is not available", s.path)
	}
	if info.Mode()&os.ModeNamedPipe == 0 {
		return errors.Errorf("%s is not a named pipe", s.path)
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY, 0)
	if err != nil {
		return errors.Wrapf(err, "failed to open report pipe %s", s.path)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to write to report pipe %s", s.path)
	}
	return errors.Wrapf(f.Close(), "failed to close report pipe %s", s.path)
}

func (s *NamedPipeOutputStream) Close() error { return nil }
