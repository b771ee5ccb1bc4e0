// Package framework contains the report aggregation core.
//
// The general model is:
//
// 1. A test-execution engine emits lifecycle events (see package servicedef). A Dispatcher
// routes each event to every subscribed handler, highest priority first.
//
// 2. A LifecycleSink subscribes at ReportPriority and turns events into calls on a
// ReportBuilder, which keeps the tree of open suites, the open test, and the buffer of HTTP
// transactions captured while that test runs.
//
// 3. At the end of the run, Reporter.Finalize builds the tree once, encodes it with an
// Interpreter and writes it to an OutputStream.
package framework
