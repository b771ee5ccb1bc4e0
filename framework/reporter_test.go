package framework

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/launchdarkly/test-report-aggregator/interpreter"
	"github.com/launchdarkly/test-report-aggregator/report"
)

type fakeInterpreter struct {
	err error
}

func (f fakeInterpreter) Interpret(v ldvalue.Value) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte(v.JSONString()), nil
}

type fakeOutput struct {
	writes   [][]byte
	closed   int
	writeErr error
	closeErr error
}

func (f *fakeOutput) Write(data []byte) error {
	f.writes = append(f.writes, data)
	return f.writeErr
}

func (f *fakeOutput) Close() error {
	f.closed++
	return f.closeErr
}

func newTestReporter(interp Interpreter, out OutputStream) *Reporter {
	b := NewReportBuilder(BuilderOptions{})
	return NewReporter(NewUnitSubscriber(b), interp, out, nil)
}

func TestReporterWritesExactlyOnce(t *testing.T) {
	out := &fakeOutput{}
	r := newTestReporter(fakeInterpreter{}, out)
	b := r.Sink().Builder()
	b.StartSuite("S")
	b.EndSuite("S")

	var hookTree *report.Tree
	r.OnFinalize(func(tree *report.Tree, anomalies []error) error {
		hookTree = tree
		assert.Empty(t, anomalies)
		return nil
	})

	assert.Nil(t, r.Tree())
	require.NoError(t, r.Finalize())
	require.Len(t, out.writes, 1)
	written := ldvalue.Parse(out.writes[0])
	assert.Equal(t, 1, written.Count())
	assert.Equal(t, "S", written.GetByIndex(0).GetByKey("name").StringValue())
	assert.Equal(t, 0, written.GetByIndex(0).GetByKey("children").Count())
	assert.Equal(t, 1, out.closed)
	assert.Same(t, r.Tree(), hookTree)

	err := r.Finalize()
	assert.True(t, errors.Is(err, ErrAlreadyBuilt))
	assert.Len(t, out.writes, 1)
	assert.Equal(t, 1, out.closed)
}

func TestReporterCollectsFailures(t *testing.T) {
	out := &fakeOutput{writeErr: errors.New("pipe broken"), closeErr: errors.New("close failed")}
	r := newTestReporter(fakeInterpreter{}, out)
	r.OnFinalize(func(*report.Tree, []error) error { return errors.New("hook failed") })

	err := r.Finalize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write report: pipe broken")
	assert.Contains(t, err.Error(), "failed to close report output: close failed")
	assert.Contains(t, err.Error(), "hook failed")

	var finalizeErr *FinalizeError
	require.True(t, errors.As(err, &finalizeErr))
	require.Error(t, finalizeErr.Output)
	assert.NotContains(t, finalizeErr.Output.Error(), "hook failed")
	require.Error(t, finalizeErr.Hooks)
	assert.Contains(t, finalizeErr.Hooks.Error(), "hook failed")
}

func TestReporterHookFailureDoesNotAffectOutput(t *testing.T) {
	out := &fakeOutput{}
	r := newTestReporter(fakeInterpreter{}, out)
	r.OnFinalize(func(*report.Tree, []error) error { return errors.New("metrics file unwritable") })

	err := r.Finalize()
	var finalizeErr *FinalizeError
	require.True(t, errors.As(err, &finalizeErr))
	assert.NoError(t, finalizeErr.Output)
	assert.Contains(t, finalizeErr.Hooks.Error(), "metrics file unwritable")
	assert.Len(t, out.writes, 1)
}

func TestReporterEmptyReportDecodesToSameTree(t *testing.T) {
	out := &fakeOutput{}
	b := NewReportBuilder(BuilderOptions{})
	r := NewReporter(NewUnitSubscriber(b), interpreter.NewDelimitedJSON(interpreter.NewLine), out, nil)
	require.NoError(t, r.Finalize())
	require.Len(t, out.writes, 1)

	decoded, err := interpreter.NewDelimitedJSON(interpreter.NewLine).Decode(out.writes[0])
	require.NoError(t, err)
	tree, err := report.TreeFromValue(decoded)
	require.NoError(t, err)
	assert.Equal(t, r.Tree(), tree)
	assert.NotNil(t, tree.Suites)
	assert.Empty(t, tree.Suites)
}

func TestReporterOutputDecodesToSameTree(t *testing.T) {
	out := &fakeOutput{}
	b := NewReportBuilder(BuilderOptions{APIVersion: ldvalue.NewOptionalString("v3"), Timer: &fakeTimer{}})
	r := NewReporter(NewUnitSubscriber(b), interpreter.NewDelimitedJSON("\x1e"), out, nil)
	b.StartSuite("A")
	b.EndSuite("A")
	b.StartSuite("B")
	b.EndSuite("B")
	require.NoError(t, r.Finalize())

	decoded, err := interpreter.NewDelimitedJSON("\x1e").Decode(out.writes[0])
	require.NoError(t, err)
	tree, err := report.TreeFromValue(decoded)
	require.NoError(t, err)
	assert.Equal(t, r.Tree(), tree)
	assert.Equal(t, ldvalue.NewOptionalString("v3"), tree.APIVersion)
}

func TestReporterEncodingFailureSkipsWrite(t *testing.T) {
	out := &fakeOutput{}
	r := newTestReporter(fakeInterpreter{err: errors.New("cannot encode")}, out)

	err := r.Finalize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode report")
	assert.Empty(t, out.writes)
	assert.Equal(t, 1, out.closed)
}

func TestReporterPassesAnomaliesToHooks(t *testing.T) {
	r := newTestReporter(fakeInterpreter{}, &fakeOutput{})
	r.Sink().Builder().EndSuite("never started")

	var seen []error
	r.OnFinalize(func(_ *report.Tree, anomalies []error) error {
		seen = anomalies
		return nil
	})
	require.NoError(t, r.Finalize())
	require.Len(t, seen, 1)
	assert.True(t, errors.Is(seen[0], ErrSuiteUnderflow))
}
