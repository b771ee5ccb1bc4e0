package stream

import (
	"io"

	"github.com/pkg/errors"
)

// WriterOutputStream writes to any io.Writer, such as standard output. Close does not close
// the writer.
type WriterOutputStream struct {
	w io.Writer
}

func NewWriterOutputStream(w io.Writer) *WriterOutputStream {
	return &WriterOutputStream{w: w}
}

func (s *WriterOutputStream) Write(data []byte) error {
	_, err := s.w.Write(data)
	return errors.Wrap(err, "failed to write report")
}

func (s *WriterOutputStream) Close() error { return nil }
