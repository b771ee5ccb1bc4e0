package framework

import (
	"errors"
	"time"

	"github.com/launchdarkly/test-report-aggregator/report"
)

type fakeTimer struct {
	elapsed time.Duration
	starts  int
}

func (t *fakeTimer) Start()                 { t.starts++ }
func (t *fakeTimer) Elapsed() time.Duration { return t.elapsed }

type fakeTrafficLogger struct {
	started  int
	written  int
	path     string
	startErr error
	writeErr error
	calls    []string
}

func (f *fakeTrafficLogger) Start() error {
	f.started++
	f.calls = append(f.calls, "start")
	return f.startErr
}

func (f *fakeTrafficLogger) Write() (string, error) {
	f.written++
	f.calls = append(f.calls, "write")
	if f.writeErr != nil {
		return "", f.writeErr
	}
	return f.path, nil
}

var errFake = errors.New("sorry")

// nodeLabels returns "suite:name" / "test:name" labels for the tree in pre-order.
func nodeLabels(tree *report.Tree) []string {
	var ret []string
	tree.Walk(func(_ []string, n report.Node) {
		ret = append(ret, string(n.NodeType())+":"+n.NodeName())
	})
	return ret
}

func newTransaction(url string) report.Transaction {
	return report.Transaction{RequestMethod: "GET", RequestURL: url}
}
