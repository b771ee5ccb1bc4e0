package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/launchdarkly/test-report-aggregator/framework"
	"github.com/launchdarkly/test-report-aggregator/logging"
)

var Version = "dev"

const (
	exitTestFailure  = 1
	exitRuntimeError = 2
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(exitRuntimeError)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "report-aggregator",
		Usage:   "collect test lifecycle events into a structured report",
		Version: Version,
		// exit codes are applied by main, so that the app can also be run in tests
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "receive events until the input ends or the process is interrupted, then write the report",
				Flags:  runFlags,
				Action: runAction,
			},
			{
				Name:      "summarize",
				Usage:     "print the outcome counts of a report file",
				ArgsUsage: "FILE",
				Flags:     summarizeFlags,
				Action:    summarizeAction,
			},
		},
	}
}

func runAction(c *cli.Context) error {
	params, err := readParams(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Invalid parameters: %s", err), exitRuntimeError)
	}
	logger, err := logging.NewLogrusLogger(c.App.ErrWriter, params.logLevel, params.logFormat)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Invalid parameters: %s", err), exitRuntimeError)
	}

	var console *ConsoleTestLogger
	if !params.quiet {
		// the report itself may be on standard output
		console = NewConsoleTestLogger(c.App.ErrWriter, params.curl)
	}
	agg, err := newAggregator(params.config, logger, c.App.Writer, console)
	if err != nil {
		return cli.Exit(err.Error(), exitRuntimeError)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runErr := agg.run(ctx, params, c.App.Reader)
	if runErr != nil {
		logger.WithError(runErr).Error("Event input failed; writing the report received so far")
	}

	if err := agg.reporter.Finalize(); err != nil {
		var finalizeErr *framework.FinalizeError
		if errors.As(err, &finalizeErr) && finalizeErr.Output == nil {
			logger.WithError(finalizeErr.Hooks).Error("Report was written, but a post-report step failed")
		} else {
			logger.WithError(err).Error("Report could not be written")
		}
		return cli.Exit("", exitRuntimeError)
	}
	if runErr != nil {
		return cli.Exit(runErr.Error(), exitRuntimeError)
	}
	if params.failOnTestFailure && !agg.reporter.Tree().OK() {
		return cli.Exit("Some tests failed", exitTestFailure)
	}
	return nil
}
