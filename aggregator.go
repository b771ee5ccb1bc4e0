package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/launchdarkly/test-report-aggregator/capture"
	"github.com/launchdarkly/test-report-aggregator/framework"
	"github.com/launchdarkly/test-report-aggregator/interpreter"
	"github.com/launchdarkly/test-report-aggregator/logging"
	"github.com/launchdarkly/test-report-aggregator/metrics"
	"github.com/launchdarkly/test-report-aggregator/servicedef"
	"github.com/launchdarkly/test-report-aggregator/stream"
)

const serverShutdownTimeout = time.Second * 5

// aggregator wires the event sources of a run to a Dispatcher, and the Dispatcher to the
// report and its other consumers.
type aggregator struct {
	dispatcher *framework.Dispatcher
	reporter   *framework.Reporter
	recorder   *capture.Recorder
	logger     *logrus.Logger
}

func newAggregator(config framework.Config, logger *logrus.Logger, stdout io.Writer, console *ConsoleTestLogger) (*aggregator, error) {
	a := &aggregator{
		dispatcher: framework.NewDispatcher(),
		logger:     logger,
	}
	a.recorder = capture.NewRecorder(nil, a.dispatchTransaction, logging.PrefixLogger(logger, "[capture] "))

	var trafficLogger framework.TrafficLogger
	if config.TrafficLoggingEnabled {
		trafficLogger = capture.NewHARLogger(a.recorder, config.TrafficDir)
	}
	builder := framework.NewReportBuilder(framework.BuilderOptions{
		Timer:         framework.NewMonotonicTimer(),
		TrafficLogger: trafficLogger,
		APIVersion:    config.APIVersion,
		Logger:        logger,
	})
	sink, err := framework.NewLifecycleSink(config.Strategy, builder)
	if err != nil {
		return nil, err
	}
	a.reporter = framework.NewReporter(sink, interpreter.NewDelimitedJSON(config.Delimiter), openOutput(config, stdout), logger)
	a.dispatcher.AddSubscriber(sink)

	if console != nil {
		a.dispatcher.AddSubscriber(console)
		a.reporter.OnFinalize(console.PrintResults)
	}
	if config.MetricsFile != "" {
		m := metrics.New(config.APIVersion.StringValue())
		a.dispatcher.AddSubscriber(m)
		a.reporter.OnFinalize(m.TextfileHook(config.MetricsFile))
		logger.WithField("run_id", m.RunID()).Debug("Metrics enabled")
	}
	return a, nil
}

func openOutput(config framework.Config, stdout io.Writer) framework.OutputStream {
	switch {
	case config.PipeName != "":
		return stream.NewNamedPipeOutputStream(config.PipeName)
	case config.OutputPath != "":
		return stream.NewFileOutputStream(config.OutputPath)
	case config.OutputDir != "":
		return stream.NewUniqueNameFileOutputStream(config.OutputDir, ".jsonl")
	default:
		return stream.NewWriterOutputStream(stdout)
	}
}

func (a *aggregator) dispatch(e servicedef.Event) {
	if n := a.dispatcher.Dispatch(e); n == 0 {
		a.logger.WithField("event", e.String()).Debug("Event has no subscribers")
	}
}

func (a *aggregator) dispatchTransaction(tx capture.Transaction) {
	a.dispatch(servicedef.TransactionEvent(tx.Method, tx.URL, tx.Request, tx.Response))
}

// consumeEvents dispatches the events read from r until it is exhausted or ctx is done.
// Malformed lines are logged and skipped. An event read after ctx is done is dropped.
func (a *aggregator) consumeEvents(ctx context.Context, r io.Reader) error {
	done := make(chan error, 1)
	go func() {
		decoder := servicedef.NewDecoder(r)
		for {
			event, err := decoder.Next()
			if err == io.EOF {
				done <- nil
				return
			}
			var lineErr *servicedef.LineError
			if errors.As(err, &lineErr) {
				a.logger.WithError(lineErr.Err).WithField("line", lineErr.Line).Warn("Skipping malformed event")
				continue
			}
			if err != nil {
				done <- errors.Wrap(err, "failed to read events")
				return
			}
			if ctx.Err() != nil {
				done <- nil
				return
			}
			a.dispatch(event)
		}
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		a.logger.Info("Interrupted before the end of the event stream")
		return nil
	}
}

// startServer listens on addr and serves handler until the returned function is called.
func (a *aggregator) startServer(addr string, handler http.Handler, description string) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "could not start %s listener", description)
	}
	server := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second * 10}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Errorf("%s listener failed", description)
		}
	}()
	a.logger.WithField("address", listener.Addr().String()).Infof("Started %s listener", description)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}

// run feeds events to the dispatcher until the input stream ends, or, if there is no input
// stream, until ctx is done.
func (a *aggregator) run(ctx context.Context, params commandParams, stdin io.Reader) error {
	var stops []func()
	defer func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}()

	if params.proxyAddr != "" {
		stop, err := a.startServer(params.proxyAddr, capture.NewProxy(a.recorder, logging.PrefixLogger(a.logger, "[proxy] ")), "traffic proxy")
		if err != nil {
			return err
		}
		stops = append(stops, stop)
	}
	if params.listenAddr != "" {
		endpoint := servicedef.NewIngestEndpoint(a.dispatch, logging.PrefixLogger(a.logger, "[ingest] "))
		stop, err := a.startServer(params.listenAddr, endpoint, "event")
		if err != nil {
			endpoint.Close()
			return err
		}
		stops = append(stops, endpoint.Close, stop)
	}

	switch params.input {
	case "":
		<-ctx.Done()
		return nil
	case "-":
		return a.consumeEvents(ctx, stdin)
	default:
		f, err := os.Open(params.input)
		if err != nil {
			return errors.Wrap(err, "failed to open event input")
		}
		defer f.Close()
		return a.consumeEvents(ctx, f)
	}
}
