package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/launchdarkly/test-report-aggregator/interpreter"
	"github.com/launchdarkly/test-report-aggregator/report"
)

func summarizeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("summarize requires exactly one report file", exitRuntimeError)
	}
	filter, err := newTestFilter(c.StringSlice(runPatternFlag.Name), c.StringSlice(skipPatternFlag.Name))
	if err != nil {
		return cli.Exit(err.Error(), exitRuntimeError)
	}
	tree, err := readReport(c.Args().First(), c.String(summarizeDelimiterFlag.Name))
	if err != nil {
		return cli.Exit(err.Error(), exitRuntimeError)
	}
	summarize(c.App.Writer, tree, filter)
	return nil
}

func readReport(path, delimiter string) (*report.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read report")
	}
	value, err := interpreter.NewDelimitedJSON(delimiter).Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed report %s", path)
	}
	tree, err := report.TreeFromValue(value)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed report %s", path)
	}
	return tree, nil
}

// summarize prints the count of each outcome, followed by the tests that did not pass. If the
// filter is defined, only the tests it matches are counted and listed.
func summarize(out io.Writer, tree *report.Tree, filter testFilter) {
	counts := make(map[report.Outcome]int)
	var notPassed []string
	total := 0
	tree.Walk(func(path []string, n report.Node) {
		t, ok := n.(*report.Test)
		if !ok {
			return
		}
		id := strings.Join(append(append([]string(nil), path...), t.Name), "/")
		if filter.IsDefined() && !filter.Match(id) {
			return
		}
		total++
		counts[t.Outcome]++
		if t.Outcome != report.OutcomePassed {
			notPassed = append(notPassed, fmt.Sprintf("  %s: %s", t.Outcome, id))
		}
	})

	if filter.IsDefined() {
		fmt.Fprintf(out, "Tests %s\n", filter)
	}
	if v := tree.APIVersion; v.IsDefined() {
		fmt.Fprintf(out, "API version: %s\n", v.StringValue())
	}
	fmt.Fprintf(out, "%d tests in %d top-level suites\n", total, len(tree.Suites))
	for _, o := range report.AllOutcomes {
		if counts[o] > 0 {
			fmt.Fprintf(out, "  %s: %d\n", o, counts[o])
		}
	}
	if len(notPassed) > 0 {
		fmt.Fprintln(out, "Tests that did not pass:")
		for _, line := range notPassed {
			fmt.Fprintln(out, line)
		}
	}
}
