package capture

import (
	"encoding/json"

	"github.com/launchdarkly/test-report-aggregator/stream"

	"github.com/pkg/errors"
)

// HARLogger writes the traffic captured by a Recorder during one test as a HAR file with a unique
// name. Start is called when a test begins and Write when it ends.
type HARLogger struct {
	recorder *Recorder
	out      *stream.UniqueNameFileOutputStream
}

// NewHARLogger creates a HARLogger that writes .har files into dir.
func NewHARLogger(recorder *Recorder, dir string) *HARLogger {
	return &HARLogger{
		recorder: recorder,
		out:      stream.NewUniqueNameFileOutputStream(dir, ".har"),
	}
}

func (l *HARLogger) Start() error {
	l.recorder.StartCapture()
	return nil
}

// Write returns the path of the artifact it wrote, or "" if capturing was never started.
func (l *HARLogger) Write() (string, error) {
	entries, started := l.recorder.StopCapture()
	if !started {
		return "", nil
	}
	data, err := json.MarshalIndent(newHAR(entries), "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encoding HAR")
	}
	path, err := l.out.WriteFile(data)
	if err != nil {
		return "", errors.Wrap(err, "writing HAR artifact")
	}
	return path, nil
}
