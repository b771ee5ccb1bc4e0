package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/launchdarkly/test-report-aggregator/capture"
	"github.com/launchdarkly/test-report-aggregator/framework"
	"github.com/launchdarkly/test-report-aggregator/report"
	"github.com/launchdarkly/test-report-aggregator/servicedef"
)

var (
	failedColor  = color.New(color.FgRed, color.Bold)
	skippedColor = color.New(color.FgYellow)
	passedColor  = color.New(color.FgGreen)
	detailColor  = color.New(color.Faint)
)

// ConsoleTestLogger prints the progress of a run as events arrive, and a summary when the
// report is finalized.
type ConsoleTestLogger struct {
	out          io.Writer
	showCurl     bool
	path         []string
	currentTest  string
	outcome      report.Outcome
	transactions []servicedef.Event
}

func NewConsoleTestLogger(out io.Writer, showCurl bool) *ConsoleTestLogger {
	return &ConsoleTestLogger{out: out, showCurl: showCurl}
}

func (c *ConsoleTestLogger) SubscribedEvents() []framework.Subscription {
	subs := []struct {
		kind    servicedef.EventKind
		handler framework.Handler
	}{
		{servicedef.SuiteStarted, c.suiteStarted},
		{servicedef.FeatureStarted, c.suiteStarted},
		{servicedef.SuiteCompleted, c.suiteCompleted},
		{servicedef.FeatureCompleted, c.suiteCompleted},
		{servicedef.TestStarted, c.testStarted},
		{servicedef.ScenarioStarted, c.testStarted},
		{servicedef.TestOutcome, c.testOutcome},
		{servicedef.StepCompleted, c.testOutcome},
		{servicedef.TestCompleted, c.testFinished},
		{servicedef.ScenarioCompleted, c.testFinished},
		{servicedef.TrafficTransactionCompleted, c.transaction},
	}
	ret := make([]framework.Subscription, 0, len(subs))
	for _, s := range subs {
		ret = append(ret, framework.Subscription{Kind: s.kind, Handler: s.handler, Priority: framework.DefaultPriority})
	}
	return ret
}

func (c *ConsoleTestLogger) suiteStarted(e servicedef.Event) {
	if e.Name != "" {
		c.path = append(c.path, e.Name)
	}
}

func (c *ConsoleTestLogger) suiteCompleted(e servicedef.Event) {
	if e.Name != "" && len(c.path) > 0 {
		c.path = c.path[:len(c.path)-1]
	}
}

func (c *ConsoleTestLogger) testStarted(e servicedef.Event) {
	c.currentTest = strings.Join(append(append([]string(nil), c.path...), e.Name), "/")
	c.outcome = ""
	c.transactions = nil
	fmt.Fprintf(c.out, "[%s]\n", c.currentTest)
}

func (c *ConsoleTestLogger) testOutcome(e servicedef.Event) {
	if c.currentTest == "" || e.Outcome == "" || e.Outcome == string(report.OutcomePassed) {
		return
	}
	// only the first outcome of a test is reported
	if c.outcome != "" {
		return
	}
	c.outcome = report.Outcome(e.Outcome)
	message := e.Message
	if e.Outcome == string(report.OutcomeFailure) && e.ComparisonFailure.StringValue() != "" {
		message = e.ComparisonFailure.StringValue()
	}
	if e.ExceptionClass != "" {
		message = e.ExceptionClass + ": " + message
	}
	for _, line := range strings.Split(message, "\n") {
		fmt.Fprintf(c.out, "  %s\n", line)
	}
}

func (c *ConsoleTestLogger) transaction(e servicedef.Event) {
	if c.currentTest != "" {
		c.transactions = append(c.transactions, e)
	}
}

func (c *ConsoleTestLogger) testFinished(e servicedef.Event) {
	if c.currentTest == "" {
		return
	}
	switch {
	case c.outcome.Failed():
		failedColor.Fprintf(c.out, "  FAILED: %s\n", c.currentTest)
		if c.showCurl {
			for _, tx := range c.transactions {
				command := capture.CurlCommand(tx.RequestMethod, tx.RequestURL, report.TextSafe(tx.Request))
				detailColor.Fprintf(c.out, "    %s\n", command)
			}
		}
	case c.outcome == report.OutcomeSkipped:
		skippedColor.Fprintf(c.out, "  SKIPPED: %s\n", c.currentTest)
	}
	c.currentTest = ""
	c.outcome = ""
	c.transactions = nil
}

// PrintResults writes the totals of a finished report. Its signature matches
// framework.FinalizeHook.
func (c *ConsoleTestLogger) PrintResults(tree *report.Tree, anomalies []error) error {
	counts := tree.Counts()
	total := 0
	for _, n := range counts {
		total += n
	}
	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "Ran %d tests\n", total)
	for _, o := range report.AllOutcomes {
		if counts[o] == 0 {
			continue
		}
		printer := detailColor
		switch {
		case o.Failed():
			printer = failedColor
		case o == report.OutcomePassed:
			printer = passedColor
		case o == report.OutcomeSkipped:
			printer = skippedColor
		}
		printer.Fprintf(c.out, "  %s: %d\n", o, counts[o])
	}

	var failed []string
	tree.Walk(func(path []string, n report.Node) {
		if t, ok := n.(*report.Test); ok && t.Outcome.Failed() {
			failed = append(failed, strings.Join(append(append([]string(nil), path...), t.Name), "/"))
		}
	})
	if len(failed) > 0 {
		fmt.Fprintln(c.out, "Failed tests:")
		for _, id := range failed {
			failedColor.Fprintf(c.out, "  %s\n", id)
		}
	}
	if len(anomalies) > 0 {
		fmt.Fprintf(c.out, "%d event sequence anomalies:\n", len(anomalies))
		for _, a := range anomalies {
			fmt.Fprintf(c.out, "  %s\n", a)
		}
	}
	return nil
}
