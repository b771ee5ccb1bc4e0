// Package interpreter encodes reports in their final textual form.
package interpreter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// NewLine is the usual record delimiter.
const NewLine = "\n"

// DelimitedJSON writes each element of an array as one JSON record, followed by a delimiter.
// The delimiter must not occur inside a record; a newline never does, since JSON escapes it.
type DelimitedJSON struct {
	delimiter string
}

func NewDelimitedJSON(delimiter string) *DelimitedJSON {
	if delimiter == "" {
		delimiter = NewLine
	}
	return &DelimitedJSON{delimiter: delimiter}
}

// Interpret encodes v. A value that is not an array is written as a single record.
func (d *DelimitedJSON) Interpret(v ldvalue.Value) ([]byte, error) {
	var buf bytes.Buffer
	if v.Type() != ldvalue.ArrayType {
		buf.WriteString(v.JSONString())
		buf.WriteString(d.delimiter)
		return buf.Bytes(), nil
	}
	for i := 0; i < v.Count(); i++ {
		record := v.GetByIndex(i).JSONString()
		if d.delimiter != NewLine && bytes.Contains([]byte(record), []byte(d.delimiter)) {
			return nil, fmt.Errorf("record %d contains the delimiter %q", i, d.delimiter)
		}
		buf.WriteString(record)
		buf.WriteString(d.delimiter)
	}
	return buf.Bytes(), nil
}

// Decode reverses Interpret, returning an array of the records found in data.
func (d *DelimitedJSON) Decode(data []byte) (ldvalue.Value, error) {
	arr := ldvalue.ArrayBuild()
	for i, chunk := range bytes.Split(data, []byte(d.delimiter)) {
		chunk = bytes.TrimSpace(chunk)
		if len(chunk) == 0 {
			continue
		}
		var record ldvalue.Value
		if err := json.Unmarshal(chunk, &record); err != nil {
			return ldvalue.Null(), fmt.Errorf("record %d: %w", i, err)
		}
		if record.IsNull() {
			return ldvalue.Null(), fmt.Errorf("record %d: %w", i, errNullRecord)
		}
		arr.Add(record)
	}
	return arr.Build(), nil
}

var errNullRecord = errors.New("record is null")

// ValidateDelimiter accepts a non-empty delimiter made only of control characters. JSON
// escapes those inside strings and never emits them elsewhere, so such a delimiter cannot
// occur in a record.
func ValidateDelimiter(delimiter string) error {
	if delimiter == "" {
		return errors.New("record delimiter must not be empty")
	}
	for _, ch := range delimiter {
		if ch >= 0x20 {
			return fmt.Errorf("record delimiter %q may only contain control characters", delimiter)
		}
	}
	return nil
}
