package framework

import (
	"fmt"

	"github.com/launchdarkly/test-report-aggregator/report"
	"github.com/launchdarkly/test-report-aggregator/servicedef"
)

// Strategy selects which kind of engine events a LifecycleSink understands.
type Strategy string

const (
	// StrategyUnit maps fine-grained unit-test events: suites, tests and their outcomes.
	StrategyUnit Strategy = "unit"
	// StrategyBehavior maps behavior-driven events: features, scenarios and steps.
	StrategyBehavior Strategy = "behavior"
)

// LifecycleSink turns engine events into calls on a ReportBuilder.
type LifecycleSink interface {
	Subscriber
	Builder() *ReportBuilder
}

// NewLifecycleSink returns the sink for the given strategy.
func NewLifecycleSink(strategy Strategy, builder *ReportBuilder) (LifecycleSink, error) {
	switch strategy {
	case StrategyUnit, "":
		return &UnitSubscriber{builder: builder}, nil
	case StrategyBehavior:
		return &BehaviorSubscriber{builder: builder}, nil
	default:
		return nil, fmt.Errorf("unknown report strategy %q", strategy)
	}
}

// UnitSubscriber handles SuiteStarted, SuiteCompleted, TestStarted, TestCompleted,
// TestOutcome and TrafficTransactionCompleted.
type UnitSubscriber struct {
	builder *ReportBuilder
}

func NewUnitSubscriber(builder *ReportBuilder) *UnitSubscriber {
	return &UnitSubscriber{builder: builder}
}

func (s *UnitSubscriber) Builder() *ReportBuilder { return s.builder }

func (s *UnitSubscriber) SubscribedEvents() []Subscription {
	return []Subscription{
		{Kind: servicedef.SuiteStarted, Handler: s.startTestSuite, Priority: ReportPriority},
		{Kind: servicedef.TestStarted, Handler: s.startTest, Priority: ReportPriority},
		{Kind: servicedef.TestCompleted, Handler: s.endTest, Priority: ReportPriority},
		{Kind: servicedef.TestOutcome, Handler: s.addOutcome, Priority: ReportPriority},
		{Kind: servicedef.SuiteCompleted, Handler: s.endTestSuite, Priority: ReportPriority},
		{Kind: servicedef.TrafficTransactionCompleted, Handler: s.addHTTPTransaction, Priority: ReportPriority},
	}
}

func (s *UnitSubscriber) startTestSuite(e servicedef.Event) { s.builder.StartSuite(e.Name) }
func (s *UnitSubscriber) endTestSuite(e servicedef.Event)   { s.builder.EndSuite(e.Name) }
func (s *UnitSubscriber) startTest(e servicedef.Event)      { s.builder.StartTest(e.Name) }
func (s *UnitSubscriber) endTest(e servicedef.Event)        { s.builder.EndTest(e.Elapsed()) }

func (s *UnitSubscriber) addOutcome(e servicedef.Event) {
	s.builder.AddOutcome(report.Outcome(e.Outcome), e.ExceptionClass, e.Message, e.Trace, e.ComparisonFailure)
}

func (s *UnitSubscriber) addHTTPTransaction(e servicedef.Event) {
	s.builder.AddHTTPTransaction(e.RequestMethod, e.RequestURL, e.Request, e.Response)
}

// BehaviorSubscriber handles FeatureStarted, FeatureCompleted, ScenarioStarted,
// ScenarioCompleted, StepCompleted and TrafficTransactionCompleted. Features become suites and
// scenarios become tests; the first step that does not pass decides the scenario's outcome.
type BehaviorSubscriber struct {
	builder *ReportBuilder
}

func NewBehaviorSubscriber(builder *ReportBuilder) *BehaviorSubscriber {
	return &BehaviorSubscriber{builder: builder}
}

func (s *BehaviorSubscriber) Builder() *ReportBuilder { return s.builder }

func (s *BehaviorSubscriber) SubscribedEvents() []Subscription {
	return []Subscription{
		{Kind: servicedef.FeatureStarted, Handler: s.startFeature, Priority: ReportPriority},
		{Kind: servicedef.ScenarioStarted, Handler: s.startScenario, Priority: ReportPriority},
		{Kind: servicedef.StepCompleted, Handler: s.endStep, Priority: ReportPriority},
		{Kind: servicedef.ScenarioCompleted, Handler: s.endScenario, Priority: ReportPriority},
		{Kind: servicedef.FeatureCompleted, Handler: s.endFeature, Priority: ReportPriority},
		{Kind: servicedef.TrafficTransactionCompleted, Handler: s.addHTTPTransaction, Priority: ReportPriority},
	}
}

func (s *BehaviorSubscriber) startFeature(e servicedef.Event)  { s.builder.StartSuite(e.Name) }
func (s *BehaviorSubscriber) endFeature(e servicedef.Event)    { s.builder.EndSuite(e.Name) }
func (s *BehaviorSubscriber) startScenario(e servicedef.Event) { s.builder.StartTest(e.Name) }
func (s *BehaviorSubscriber) endScenario(e servicedef.Event)   { s.builder.EndTest(e.Elapsed()) }

func (s *BehaviorSubscriber) endStep(e servicedef.Event) {
	if e.Outcome == "" || e.Outcome == string(report.OutcomePassed) {
		return
	}
	message := e.Message
	if e.Name != "" {
		message = fmt.Sprintf("step %q: %s", e.Name, e.Message)
	}
	s.builder.AddOutcome(report.Outcome(e.Outcome), e.ExceptionClass, message, e.Trace, e.ComparisonFailure)
}

func (s *BehaviorSubscriber) addHTTPTransaction(e servicedef.Event) {
	s.builder.AddHTTPTransaction(e.RequestMethod, e.RequestURL, e.Request, e.Response)
}
