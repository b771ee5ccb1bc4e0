package report

import (
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Outcome is the terminal classification of a test.
type Outcome string

const (
	OutcomePassed     Outcome = "passed"
	OutcomeError      Outcome = "error"
	OutcomeFailure    Outcome = "failure"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeWarning    Outcome = "warning"
	OutcomeIncomplete Outcome = "incomplete"
	OutcomeRisky      Outcome = "risky"
)

// AllOutcomes lists every outcome in the order they are usually displayed.
var AllOutcomes = []Outcome{
	OutcomePassed,
	OutcomeFailure,
	OutcomeError,
	OutcomeSkipped,
	OutcomeIncomplete,
	OutcomeRisky,
	OutcomeWarning,
}

// ParseOutcome returns the Outcome with the given name, or false if there is none.
func ParseOutcome(s string) (Outcome, bool) {
	for _, o := range AllOutcomes {
		if string(o) == s {
			return o, true
		}
	}
	return "", false
}

// Failed is true for the outcomes that mean the test did not succeed.
func (o Outcome) Failed() bool {
	return o == OutcomeError || o == OutcomeFailure
}

// NodeType distinguishes suite records from test records.
type NodeType string

const (
	NodeTypeSuite NodeType = "suite"
	NodeTypeTest  NodeType = "test"
)

// Node is either a *Suite or a *Test.
type Node interface {
	NodeType() NodeType
	NodeName() string
}

// Tree is the root of a report.
type Tree struct {
	Suites     []*Suite
	APIVersion ldvalue.OptionalString
}

// Suite is a named group of tests and child suites. Children holds both kinds of nodes in the
// order they were started.
type Suite struct {
	Name     string
	Children []Node
}

// Test is the record of one executed test.
type Test struct {
	Name            string
	ElapsedTime     time.Duration
	Outcome         Outcome
	Detail          *OutcomeDetail
	TrafficArtifact string
	Transactions    []Transaction
}

// OutcomeDetail describes the exception or assertion that produced a non-passing outcome.
type OutcomeDetail struct {
	ExceptionClass string
	Message        string
	Trace          string
}

// Transaction is one HTTP request/response pair captured during a test. Request and Response
// hold the raw messages after text-safe conversion.
type Transaction struct {
	RequestMethod string
	RequestURL    string
	Request       string
	Response      string
}

func (s *Suite) NodeType() NodeType { return NodeTypeSuite }
func (s *Suite) NodeName() string   { return s.Name }
func (t *Test) NodeType() NodeType  { return NodeTypeTest }
func (t *Test) NodeName() string    { return t.Name }

// Suites returns the child suites in order.
func (s *Suite) Suites() []*Suite {
	ret := []*Suite{}
	for _, n := range s.Children {
		if c, ok := n.(*Suite); ok {
			ret = append(ret, c)
		}
	}
	return ret
}

// Tests returns the tests directly inside this suite, in order. The result is never nil.
func (s *Suite) Tests() []*Test {
	ret := []*Test{}
	for _, n := range s.Children {
		if t, ok := n.(*Test); ok {
			ret = append(ret, t)
		}
	}
	return ret
}

// Walk visits every node of the tree in depth-first pre-order, passing the path of suite names
// leading to it.
func (t *Tree) Walk(visit func(path []string, n Node)) {
	for _, s := range t.Suites {
		walkSuite(nil, s, visit)
	}
}

func walkSuite(parent []string, s *Suite, visit func([]string, Node)) {
	visit(parent, s)
	path := append(append([]string(nil), parent...), s.Name)
	for _, n := range s.Children {
		if child, ok := n.(*Suite); ok {
			walkSuite(path, child, visit)
		} else {
			visit(path, n)
		}
	}
}

// Counts returns the number of tests with each outcome.
func (t *Tree) Counts() map[Outcome]int {
	ret := make(map[Outcome]int)
	t.Walk(func(_ []string, n Node) {
		if test, ok := n.(*Test); ok {
			ret[test.Outcome]++
		}
	})
	return ret
}

// OK is true if no test in the tree has a failing outcome.
func (t *Tree) OK() bool {
	for o, n := range t.Counts() {
		if o.Failed() && n > 0 {
			return false
		}
	}
	return true
}
