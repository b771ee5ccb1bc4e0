package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// Logger is the minimal logging capability that components accept. *logrus.Logger satisfies it.
type Logger interface {
	Printf(message string, args ...interface{})
}

type nullLogger struct{}

func (n nullLogger) Printf(message string, args ...interface{}) {}

func NullLogger() Logger { return nullLogger{} }

// NewLogrusLogger creates the process logger. Format is "text" or "json".
func NewLogrusLogger(out io.Writer, level string, format string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(lvl)
	switch strings.ToLower(format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: timestampFormat})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return logger, nil
}

// PrefixLogger prepends a fixed prefix to every message.
func PrefixLogger(logger Logger, prefix string) Logger {
	if logger == nil {
		return NullLogger()
	}
	return prefixLogger{logger: logger, prefix: prefix}
}

type prefixLogger struct {
	logger Logger
	prefix string
}

func (p prefixLogger) Printf(message string, args ...interface{}) {
	p.logger.Printf(p.prefix+message, args...)
}

type CapturedMessage struct {
	Time    time.Time
	Message string
}

type CapturedOutput []CapturedMessage

// CapturingLogger keeps every message in memory. It is safe for concurrent use.
type CapturingLogger struct {
	output []CapturedMessage
	lock   sync.Mutex
}

func (l *CapturingLogger) Printf(message string, args ...interface{}) {
	l.lock.Lock()
	l.output = append(l.output, CapturedMessage{Time: time.Now(), Message: fmt.Sprintf(message, args...)})
	l.lock.Unlock()
}

func (l *CapturingLogger) Output() CapturedOutput {
	l.lock.Lock()
	ret := append([]CapturedMessage(nil), l.output...)
	l.lock.Unlock()
	return ret
}

// Messages returns just the message text of the captured output.
func (output CapturedOutput) Messages() []string {
	ret := make([]string, 0, len(output))
	for _, m := range output {
		ret = append(ret, m.Message)
	}
	return ret
}
