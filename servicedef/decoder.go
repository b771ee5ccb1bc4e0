package servicedef

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

const maxEventLineSize = 64 * 1024 * 1024

// LineError reports an event line that could not be decoded. Decoding can continue after it.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("event line %d: %s", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Decoder reads newline-delimited JSON events.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLineSize)
	return &Decoder{scanner: scanner}
}

// Next returns the next event. It returns io.EOF at the end of the input, and a *LineError
// for a malformed line, after which Next may be called again.
func (d *Decoder) Next() (Event, error) {
	for d.scanner.Scan() {
		d.line++
		data := bytes.TrimSpace(d.scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		event, err := ParseEvent(data)
		if err != nil {
			return Event{}, &LineError{Line: d.line, Err: err}
		}
		return event, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// ParseEvent decodes and validates one JSON event.
func ParseEvent(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, fmt.Errorf("malformed event JSON: %w", err)
	}
	if err := event.Validate(); err != nil {
		return Event{}, err
	}
	return event, nil
}
