package framework

import (
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/launchdarkly/test-report-aggregator/logging"
	"github.com/launchdarkly/test-report-aggregator/report"
)

// Interpreter encodes a report in its nested mapping form.
type Interpreter interface {
	Interpret(ldvalue.Value) ([]byte, error)
}

// OutputStream is the destination of the encoded report.
type OutputStream interface {
	Write(data []byte) error
	Close() error
}

// FinalizeHook is called with the finished report and the builder's anomalies after the report
// has been written.
type FinalizeHook func(tree *report.Tree, anomalies []error) error

// Reporter owns a LifecycleSink and writes its report exactly once, when Finalize is called
// at the end of the run.
type Reporter struct {
	sink        LifecycleSink
	interpreter Interpreter
	output      OutputStream
	logger      logging.Logger
	hooks       []FinalizeHook
	tree        *report.Tree
	finalized   bool
	lock        sync.Mutex
}

func NewReporter(sink LifecycleSink, interpreter Interpreter, output OutputStream, logger logging.Logger) *Reporter {
	if logger == nil {
		logger = logging.NullLogger()
	}
	return &Reporter{
		sink:        sink,
		interpreter: interpreter,
		output:      output,
		logger:      logger,
	}
}

// Sink returns the LifecycleSink so that it can be added to a Dispatcher.
func (r *Reporter) Sink() LifecycleSink { return r.sink }

// OnFinalize adds a hook to run at the end of Finalize.
func (r *Reporter) OnFinalize(hook FinalizeHook) {
	r.lock.Lock()
	r.hooks = append(r.hooks, hook)
	r.lock.Unlock()
}

// Finalize builds the report, encodes it and writes it to the output stream, then closes the
// stream and runs the hooks. Only the first call does anything; later calls return
// ErrAlreadyBuilt. Every later failure is collected into a *FinalizeError.
func (r *Reporter) Finalize() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.finalized {
		return ErrAlreadyBuilt
	}
	r.finalized = true

	tree, err := r.sink.Builder().Build()
	if err != nil {
		return err
	}
	r.tree = tree
	anomalies := r.sink.Builder().Anomalies()
	if len(anomalies) > 0 {
		r.logger.Printf("Report was built with %d anomalies", len(anomalies))
	}

	var output, hooks *multierror.Error
	data, err := r.interpreter.Interpret(tree.ToValue())
	if err != nil {
		output = multierror.Append(output, errors.Wrap(err, "failed to encode report"))
	} else if err := r.output.Write(data); err != nil {
		output = multierror.Append(output, errors.Wrap(err, "failed to write report"))
	}
	if err := r.output.Close(); err != nil {
		output = multierror.Append(output, errors.Wrap(err, "failed to close report output"))
	}
	for _, hook := range r.hooks {
		if err := hook(tree, anomalies); err != nil {
			hooks = multierror.Append(hooks, err)
		}
	}
	if output == nil && hooks == nil {
		return nil
	}
	return &FinalizeError{Output: output.ErrorOrNil(), Hooks: hooks.ErrorOrNil()}
}

// FinalizeError is returned by Finalize when the report could not be delivered or a hook
// failed. Output is nil if the report was written and closed.
type FinalizeError struct {
	Output error
	Hooks  error
}

func (e *FinalizeError) Error() string {
	var all *multierror.Error
	if e.Output != nil {
		all = multierror.Append(all, e.Output)
	}
	if e.Hooks != nil {
		all = multierror.Append(all, e.Hooks)
	}
	return all.Error()
}

// Tree returns the report built by Finalize, or nil if Finalize has not been called.
func (r *Reporter) Tree() *report.Tree {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.tree
}
