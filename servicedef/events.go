// Package servicedef defines the lifecycle events that a test-execution engine sends to the
// report aggregator, and the two ways of receiving them: newline-delimited JSON from a stream,
// or HTTP callbacks that may arrive out of order.
package servicedef

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// EventKind identifies a lifecycle notification.
type EventKind string

const (
	SuiteStarted                EventKind = "SuiteStarted"
	SuiteCompleted              EventKind = "SuiteCompleted"
	TestStarted                 EventKind = "TestStarted"
	TestCompleted               EventKind = "TestCompleted"
	TestOutcome                 EventKind = "TestOutcome"
	TrafficTransactionCompleted EventKind = "TrafficTransactionCompleted"

	// Events of behavior-driven engines, where features contain scenarios made of steps.
	FeatureStarted    EventKind = "FeatureStarted"
	FeatureCompleted  EventKind = "FeatureCompleted"
	ScenarioStarted   EventKind = "ScenarioStarted"
	ScenarioCompleted EventKind = "ScenarioCompleted"
	StepCompleted     EventKind = "StepCompleted"
)

// AllEventKinds lists every defined event kind.
var AllEventKinds = []EventKind{
	SuiteStarted, SuiteCompleted, TestStarted, TestCompleted, TestOutcome, TrafficTransactionCompleted,
	FeatureStarted, FeatureCompleted, ScenarioStarted, ScenarioCompleted, StepCompleted,
}

var ErrUnknownEventKind = errors.New("unknown event kind")

// Known is true if k is one of the defined event kinds.
func (k EventKind) Known() bool {
	for _, known := range AllEventKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Event is a single lifecycle notification. Which fields are meaningful depends on Kind.
//
// Request and Response are raw HTTP messages; like any []byte they are base64-encoded in JSON,
// so they may contain arbitrary binary data.
type Event struct {
	Kind EventKind `json:"kind"`

	// Name is the suite, test, feature or scenario name.
	Name string `json:"name,omitempty"`

	// ElapsedTime is the test execution time in seconds, as measured by the engine. If it is
	// omitted the aggregator uses its own timer.
	ElapsedTime *float64 `json:"elapsedTime,omitempty"`

	Outcome           string                 `json:"outcome,omitempty"`
	ExceptionClass    string                 `json:"exceptionClass,omitempty"`
	Message           string                 `json:"message,omitempty"`
	Trace             string                 `json:"trace,omitempty"`
	ComparisonFailure ldvalue.OptionalString `json:"comparisonFailure,omitempty"`

	RequestMethod string `json:"requestMethod,omitempty"`
	RequestURL    string `json:"requestUrl,omitempty"`
	Request       []byte `json:"request,omitempty"`
	Response      []byte `json:"response,omitempty"`
}

// ElapsedUnknown is returned by Event.Elapsed when the event carries no execution time.
const ElapsedUnknown time.Duration = -1

// Elapsed returns ElapsedTime as a Duration, or ElapsedUnknown.
func (e Event) Elapsed() time.Duration {
	if e.ElapsedTime == nil || *e.ElapsedTime < 0 || math.IsNaN(*e.ElapsedTime) {
		return ElapsedUnknown
	}
	return time.Duration(math.Round(*e.ElapsedTime * float64(time.Second)))
}

// Validate checks that the event kind is known.
func (e Event) Validate() error {
	if !e.Kind.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownEventKind, e.Kind)
	}
	return nil
}

func (e Event) String() string {
	if e.Name != "" {
		return fmt.Sprintf("%s(%s)", e.Kind, e.Name)
	}
	if e.Kind == TrafficTransactionCompleted {
		return fmt.Sprintf("%s(%s %s)", e.Kind, e.RequestMethod, e.RequestURL)
	}
	if e.Outcome != "" {
		return fmt.Sprintf("%s(%s)", e.Kind, e.Outcome)
	}
	return string(e.Kind)
}

// NamedEvent creates a SuiteStarted, SuiteCompleted, TestStarted or similar event.
func NamedEvent(kind EventKind, name string) Event {
	return Event{Kind: kind, Name: name}
}

// TestCompletedEvent creates a TestCompleted event with the given execution time.
func TestCompletedEvent(elapsed time.Duration) Event {
	seconds := elapsed.Seconds()
	return Event{Kind: TestCompleted, ElapsedTime: &seconds}
}

// OutcomeEvent creates a TestOutcome event.
func OutcomeEvent(outcome, exceptionClass, message, trace string) Event {
	return Event{
		Kind:           TestOutcome,
		Outcome:        outcome,
		ExceptionClass: exceptionClass,
		Message:        message,
		Trace:          trace,
	}
}

// TransactionEvent creates a TrafficTransactionCompleted event.
func TransactionEvent(method, url string, request, response []byte) Event {
	return Event{
		Kind:          TrafficTransactionCompleted,
		RequestMethod: method,
		RequestURL:    url,
		Request:       request,
		Response:      response,
	}
}
