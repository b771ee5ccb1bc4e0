package framework

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/launchdarkly/test-report-aggregator/logging"
	"github.com/launchdarkly/test-report-aggregator/report"
)

var (
	ErrAlreadyBuilt      = errors.New("report was already built")
	ErrNoOpenTest        = errors.New("no test is open")
	ErrNoOpenSuite       = errors.New("no suite is open")
	ErrSuiteUnderflow    = errors.New("suite completed without a matching start")
	ErrSuiteNotCompleted = errors.New("suite never completed")
	ErrTestNotCompleted  = errors.New("test never completed")
	ErrInvalidOutcome    = errors.New("invalid test outcome")
	ErrTrafficLogger     = errors.New("traffic logger failed")
)

// ElapsedFromTimer tells EndTest to use the builder's own Timer reading.
const ElapsedFromTimer time.Duration = -1

// BuilderOptions configures a ReportBuilder. All fields are optional.
type BuilderOptions struct {
	Timer         Timer
	TrafficLogger TrafficLogger
	APIVersion    ldvalue.OptionalString
	Logger        logging.Logger
}

// ReportBuilder reduces an ordered stream of suite and test lifecycle calls into a report.Tree.
//
// Whether a started suite is top-level or nested is decided by a depth counter, not by names,
// so sibling suites with identical names are kept apart. Protocol anomalies (unmatched
// completions, traffic with no open test, conflicting outcomes) never fail the run: they are
// logged, recorded in Anomalies, and otherwise ignored.
//
// All methods are safe for concurrent use; calls are applied one at a time.
type ReportBuilder struct {
	suites        []*report.Suite
	open          []*report.Suite
	depth         int
	current       *report.Test
	buffer        TransactionBuffer
	timer         Timer
	trafficLogger TrafficLogger
	apiVersion    ldvalue.OptionalString
	logger        logging.Logger
	anomalies     []error
	built         bool
	lock          sync.Mutex
}

func NewReportBuilder(options BuilderOptions) *ReportBuilder {
	b := &ReportBuilder{
		suites:        []*report.Suite{},
		timer:         options.Timer,
		trafficLogger: options.TrafficLogger,
		apiVersion:    options.APIVersion,
		logger:        options.Logger,
	}
	if b.timer == nil {
		b.timer = NewMonotonicTimer()
	}
	if b.logger == nil {
		b.logger = logging.NullLogger()
	}
	return b
}

// StartSuite opens a suite: a top-level one if no suite is open, otherwise a child of the
// innermost open suite. A suite with an empty name is ignored.
func (b *ReportBuilder) StartSuite(name string) {
	if name == "" {
		return
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.rejectIfBuilt("start suite " + name) {
		return
	}

	s := &report.Suite{Name: name, Children: []report.Node{}}
	if b.depth == 0 {
		b.suites = append(b.suites, s)
	} else {
		parent := b.open[len(b.open)-1]
		parent.Children = append(parent.Children, s)
	}
	b.open = append(b.open, s)
	b.depth++
}

// EndSuite closes the innermost open suite. A suite with an empty name is ignored.
func (b *ReportBuilder) EndSuite(name string) {
	if name == "" {
		return
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.rejectIfBuilt("end suite " + name) {
		return
	}
	if b.depth == 0 {
		b.anomaly(fmt.Errorf("%w: %q", ErrSuiteUnderflow, name))
		return
	}
	if b.current != nil {
		b.abandonTest(fmt.Sprintf("suite %q completed", name))
	}
	if innermost := b.open[len(b.open)-1]; innermost.Name != name {
		b.logger.Printf("Suite %q completed while %q was the innermost open suite", name, innermost.Name)
	}
	b.open = b.open[:len(b.open)-1]
	b.depth--
}

// StartTest opens a test in the innermost open suite, starts the traffic logger if there is
// one, empties the transaction buffer and starts the timer.
func (b *ReportBuilder) StartTest(name string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.rejectIfBuilt("start test " + name) {
		return
	}
	if b.current != nil {
		b.abandonTest(fmt.Sprintf("test %q started", name))
	}

	if b.trafficLogger != nil {
		if err := b.trafficLogger.Start(); err != nil {
			b.anomaly(fmt.Errorf("%w: starting capture for %q: %s", ErrTrafficLogger, name, err))
		}
	}
	t := &report.Test{Name: name, Transactions: []report.Transaction{}}
	if b.depth == 0 {
		b.anomaly(fmt.Errorf("%w: test %q is not part of any suite and will not be reported", ErrNoOpenSuite, name))
	} else {
		parent := b.open[len(b.open)-1]
		parent.Children = append(parent.Children, t)
	}
	b.current = t
	b.buffer.Reset()
	b.timer.Start()
}

// EndTest seals the open test. If elapsed is negative, the builder's Timer reading is used.
func (b *ReportBuilder) EndTest(elapsed time.Duration) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.rejectIfBuilt("end test") {
		return
	}
	if b.current == nil {
		b.anomaly(fmt.Errorf("%w: test completed without a matching start", ErrNoOpenTest))
		return
	}
	b.sealTest(elapsed, report.OutcomePassed)
}

// AddOutcome records the outcome of the open test. Only the first outcome of a test is kept;
// later ones are discarded. For a failure, a non-empty comparisonFailure replaces the message.
func (b *ReportBuilder) AddOutcome(
	kind report.Outcome,
	exceptionClass, message, trace string,
	comparisonFailure ldvalue.OptionalString,
) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.rejectIfBuilt("add outcome " + string(kind)) {
		return
	}
	if _, ok := report.ParseOutcome(string(kind)); !ok || kind == report.OutcomePassed {
		b.anomaly(fmt.Errorf("%w: %q", ErrInvalidOutcome, kind))
		return
	}
	if b.current == nil {
		b.anomaly(fmt.Errorf("%w: %s outcome (%s: %s) discarded", ErrNoOpenTest, kind, exceptionClass, message))
		return
	}
	if b.current.Outcome != "" {
		b.logger.Printf("Discarded %s outcome of test %q, which already has outcome %s",
			kind, b.current.Name, b.current.Outcome)
		return
	}

	if kind == report.OutcomeFailure && comparisonFailure.StringValue() != "" {
		message = comparisonFailure.StringValue()
	}
	b.current.Outcome = kind
	b.current.Detail = &report.OutcomeDetail{
		ExceptionClass: exceptionClass,
		Message:        message,
		Trace:          trace,
	}
}

// AddHTTPTransaction queues a transaction for the open test. A transaction that arrives while
// no test is open is rejected rather than attached to a neighboring test.
func (b *ReportBuilder) AddHTTPTransaction(method, url string, request, response []byte) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.rejectIfBuilt("add transaction " + method + " " + url) {
		return
	}
	if b.current == nil {
		b.anomaly(fmt.Errorf("%w: transaction %s %s discarded", ErrNoOpenTest, method, url))
		return
	}
	b.buffer.Push(report.Transaction{
		RequestMethod: method,
		RequestURL:    url,
		Request:       report.TextSafe(request),
		Response:      report.TextSafe(response),
	})
}

// Build seals and returns the report. It may only be called once; later calls return
// ErrAlreadyBuilt. A test or suites still open at this point are closed and recorded as
// anomalies.
func (b *ReportBuilder) Build() (*report.Tree, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.built {
		return nil, ErrAlreadyBuilt
	}
	if b.current != nil {
		b.abandonTest("report was built")
	}
	for i := len(b.open) - 1; i >= 0; i-- {
		b.anomaly(fmt.Errorf("%w: %q", ErrSuiteNotCompleted, b.open[i].Name))
	}
	b.open = nil
	b.depth = 0
	b.built = true
	return &report.Tree{Suites: b.suites, APIVersion: b.apiVersion}, nil
}

// Depth returns the number of open suites.
func (b *ReportBuilder) Depth() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.depth
}

// Anomalies returns the protocol anomalies seen so far, in order.
func (b *ReportBuilder) Anomalies() []error {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]error(nil), b.anomalies...)
}

func (b *ReportBuilder) sealTest(elapsed time.Duration, defaultOutcome report.Outcome) {
	t := b.current
	if b.trafficLogger != nil {
		artifact, err := b.trafficLogger.Write()
		if err != nil {
			b.anomaly(fmt.Errorf("%w: writing capture for %q: %s", ErrTrafficLogger, t.Name, err))
		}
		t.TrafficArtifact = artifact
	}
	t.Transactions = b.buffer.Drain()
	if elapsed < 0 {
		elapsed = b.timer.Elapsed()
	}
	t.ElapsedTime = elapsed
	if t.Outcome == "" {
		t.Outcome = defaultOutcome
	}
	b.current = nil
}

func (b *ReportBuilder) abandonTest(reason string) {
	b.anomaly(fmt.Errorf("%w: %q was still open when %s", ErrTestNotCompleted, b.current.Name, reason))
	b.sealTest(ElapsedFromTimer, report.OutcomeIncomplete)
}

func (b *ReportBuilder) rejectIfBuilt(action string) bool {
	if b.built {
		b.anomaly(fmt.Errorf("%w: ignored %s", ErrAlreadyBuilt, action))
	}
	return b.built
}

func (b *ReportBuilder) anomaly(err error) {
	b.anomalies = append(b.anomalies, err)
	b.logger.Printf("Report anomaly: %s", err)
}
