package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/launchdarkly/test-report-aggregator/interpreter"
	"github.com/launchdarkly/test-report-aggregator/report"
)

const sampleEvents = `{"kind":"SuiteStarted","name":"outer"}
{"kind":"TestStarted","name":"first"}
{"kind":"TestCompleted","elapsedTime":0.5}

{"kind":"SuiteStarted","name":"inner"}
{"kind":"TestStarted","name":"second"}
{"kind":"TestOutcome","outcome":"failure","exceptionClass":"AssertionError","message":"expected 1"}
{"kind":"TestCompleted","elapsedTime":1.25}
{"kind":"SuiteCompleted","name":"inner"}
this is not an event
{"kind":"SuiteCompleted","name":"outer"}
`

type appRun struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
	err    error
}

func runApp(stdin string, args ...string) *appRun {
	var r appRun
	app := newApp()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &r.stdout
	app.ErrWriter = &r.stderr
	r.err = app.Run(append([]string{"report-aggregator"}, args...))
	return &r
}

func exitCode(t *testing.T, err error) int {
	var exitErr cli.ExitCoder
	require.True(t, errors.As(err, &exitErr), "expected an exit error, got %v", err)
	return exitErr.ExitCode()
}

func parseReport(t *testing.T, data []byte) *report.Tree {
	value, err := interpreter.NewDelimitedJSON("").Decode(data)
	require.NoError(t, err)
	tree, err := report.TreeFromValue(value)
	require.NoError(t, err)
	return tree
}

func TestRunWritesReportToStandardOutput(t *testing.T) {
	r := runApp(sampleEvents, "run", "--quiet", "--api-version", "v3")
	require.NoError(t, r.err)

	assert.Equal(t, 1, strings.Count(r.stdout.String(), "\n"))
	tree := parseReport(t, r.stdout.Bytes())
	require.Len(t, tree.Suites, 1)
	assert.Equal(t, "v3", tree.APIVersion.StringValue())

	outer := tree.Suites[0]
	assert.Equal(t, "outer", outer.Name)
	require.Len(t, outer.Tests(), 1)
	assert.Equal(t, report.OutcomePassed, outer.Tests()[0].Outcome)
	require.Len(t, outer.Suites(), 1)
	second := outer.Suites()[0].Tests()[0]
	assert.Equal(t, report.OutcomeFailure, second.Outcome)
	assert.Equal(t, "expected 1", second.Detail.Message)
	assert.InDelta(t, 1.25, second.ElapsedTime.Seconds(), 0.0001)

	assert.Contains(t, r.stderr.String(), "Skipping malformed event")
}

func TestRunFromInputFileToOutputFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "events.jsonl")
	output := filepath.Join(dir, "report.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(sampleEvents), 0o644))

	r := runApp("", "run", "--input", input, "--output", output)
	require.NoError(t, r.err)
	assert.Equal(t, "", r.stdout.String())

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	tree := parseReport(t, data)
	assert.Equal(t, map[report.Outcome]int{report.OutcomePassed: 1, report.OutcomeFailure: 1}, tree.Counts())

	assert.Contains(t, r.stderr.String(), "[outer/inner/second]")
	assert.Contains(t, r.stderr.String(), "FAILED: outer/inner/second")
	assert.Contains(t, r.stderr.String(), "Ran 2 tests")
}

func TestRunFailOnTestFailure(t *testing.T) {
	r := runApp(sampleEvents, "run", "--quiet", "--fail-on-test-failure")
	require.Error(t, r.err)
	assert.Equal(t, exitTestFailure, exitCode(t, r.err))
	assert.NotEqual(t, "", r.stdout.String())

	passing := `{"kind":"SuiteStarted","name":"s"}
{"kind":"TestStarted","name":"t"}
{"kind":"TestCompleted"}
{"kind":"SuiteCompleted","name":"s"}
`
	r = runApp(passing, "run", "--quiet", "--fail-on-test-failure")
	assert.NoError(t, r.err)
}

func TestRunOutputFailureExitsWithRuntimeError(t *testing.T) {
	notAPipe := filepath.Join(t.TempDir(), "regular-file")
	require.NoError(t, os.WriteFile(notAPipe, nil, 0o644))

	r := runApp(sampleEvents, "run", "--quiet", "--log-format", "json", "--pipe", notAPipe)
	require.Error(t, r.err)
	assert.Equal(t, exitRuntimeError, exitCode(t, r.err))
	assert.Contains(t, r.stderr.String(), `"level":"error"`)
	assert.Contains(t, r.stderr.String(), `"msg":"Report could not be written"`)
	assert.Contains(t, r.stderr.String(), "is not a named pipe")
}

func TestRunMetricsFailureIsReportedSeparately(t *testing.T) {
	reportPath := filepath.Join(t.TempDir(), "report.jsonl")
	metricsFile := filepath.Join(t.TempDir(), "missing-dir", "report.prom")

	r := runApp(sampleEvents, "run", "--quiet", "--log-format", "json",
		"--output", reportPath, "--metrics-file", metricsFile)
	require.Error(t, r.err)
	assert.Equal(t, exitRuntimeError, exitCode(t, r.err))
	assert.Contains(t, r.stderr.String(), `"msg":"Report was written, but a post-report step failed"`)
	assert.NotContains(t, r.stderr.String(), "Report could not be written")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Len(t, parseReport(t, data).Suites, 1)
}

func TestRunRejectsInvalidParameters(t *testing.T) {
	for _, args := range [][]string{
		{"--output", "a", "--output-dir", "b"},
		{"--strategy", "random"},
		{"--traffic"},
		{"--log-format", "xml"},
		{"--config", filepath.Join(t.TempDir(), "missing.yaml")},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			r := runApp("", append([]string{"run"}, args...)...)
			require.Error(t, r.err)
			assert.Equal(t, exitRuntimeError, exitCode(t, r.err))
		})
	}
}

func TestRunWithConfigFileAndOverride(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	fromFile := filepath.Join(dir, "from-file.jsonl")
	fromFlag := filepath.Join(dir, "from-flag.jsonl")
	require.NoError(t, os.WriteFile(configPath, []byte("outputPath: "+fromFile+"\napiVersion: v1\n"), 0o644))

	r := runApp(sampleEvents, "run", "--quiet", "--config", configPath, "--api-version", "v2")
	require.NoError(t, r.err)
	data, err := os.ReadFile(fromFile)
	require.NoError(t, err)
	assert.Equal(t, "v2", parseReport(t, data).APIVersion.StringValue())

	r = runApp(sampleEvents, "run", "--quiet", "--config", configPath, "--output", fromFlag)
	require.NoError(t, r.err)
	data, err = os.ReadFile(fromFlag)
	require.NoError(t, err)
	assert.Equal(t, "v1", parseReport(t, data).APIVersion.StringValue())
}

func TestRunWithEnvironmentVariable(t *testing.T) {
	output := filepath.Join(t.TempDir(), "report.jsonl")
	t.Setenv("REPORT_OUTPUT", output)

	r := runApp(sampleEvents, "run", "--quiet")
	require.NoError(t, r.err)
	_, err := os.Stat(output)
	assert.NoError(t, err)
}

func TestRunBehaviorStrategy(t *testing.T) {
	events := `{"kind":"FeatureStarted","name":"login"}
{"kind":"ScenarioStarted","name":"bad password"}
{"kind":"StepCompleted","name":"submit","outcome":"passed"}
{"kind":"StepCompleted","name":"check","outcome":"failure","message":"still logged in"}
{"kind":"ScenarioCompleted"}
{"kind":"FeatureCompleted","name":"login"}
`
	r := runApp(events, "run", "--quiet", "--strategy", "behavior")
	require.NoError(t, r.err)
	tree := parseReport(t, r.stdout.Bytes())
	require.Len(t, tree.Suites, 1)
	test := tree.Suites[0].Tests()[0]
	assert.Equal(t, "bad password", test.Name)
	assert.Equal(t, report.OutcomeFailure, test.Outcome)
	assert.Equal(t, `step "check": still logged in`, test.Detail.Message)
}

func TestRunWritesMetrics(t *testing.T) {
	metricsFile := filepath.Join(t.TempDir(), "report.prom")
	r := runApp(sampleEvents, "run", "--quiet", "--metrics-file", metricsFile)
	require.NoError(t, r.err)
	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test_report_tests_total")
}

func TestSummarize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.jsonl")
	r := runApp(sampleEvents, "run", "--quiet", "--output", path)
	require.NoError(t, r.err)

	r = runApp("", "summarize", path)
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout.String(), "2 tests in 1 top-level suites")
	assert.Contains(t, r.stdout.String(), "  passed: 1\n")
	assert.Contains(t, r.stdout.String(), "  failure: 1\n")
	assert.Contains(t, r.stdout.String(), "  failure: outer/inner/second\n")

	r = runApp("", "summarize", "--skip", "inner", path)
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout.String(), "1 tests in 1 top-level suites")
	assert.NotContains(t, r.stdout.String(), "failure")
}

func TestSummarizeErrors(t *testing.T) {
	r := runApp("", "summarize")
	assert.Equal(t, exitRuntimeError, exitCode(t, r.err))

	r = runApp("", "summarize", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, exitRuntimeError, exitCode(t, r.err))

	bad := filepath.Join(t.TempDir(), "bad.jsonl")
	require.NoError(t, os.WriteFile(bad, []byte("{not json\n"), 0o644))
	r = runApp("", "summarize", bad)
	assert.Equal(t, exitRuntimeError, exitCode(t, r.err))
}
