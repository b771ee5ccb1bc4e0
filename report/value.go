package report

import (
	"fmt"
	"math"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Property names used in the nested mapping form of a report.
const (
	PropName            = "name"
	PropType            = "type"
	PropChildren        = "children"
	PropAPIVersion      = "apiVersion"
	PropOutcome         = "outcome"
	PropOutcomeDetail   = "outcomeDetail"
	PropExceptionClass  = "exceptionClass"
	PropMessage         = "message"
	PropTrace           = "trace"
	PropElapsedTime     = "elapsedTime"
	PropTrafficArtifact = "trafficArtifact"
	PropTransactions    = "transactions"
	PropRequestMethod   = "request_method"
	PropRequestURL      = "request_url"
	PropRequest         = "request"
	PropResponse        = "response"
)

// ToValue converts the tree to an array with one object per top-level suite. Elapsed times are
// expressed in seconds.
func (t *Tree) ToValue() ldvalue.Value {
	arr := ldvalue.ArrayBuildWithCapacity(len(t.Suites))
	for _, s := range t.Suites {
		arr.Add(suiteToValue(s, t.APIVersion))
	}
	return arr.Build()
}

func suiteToValue(s *Suite, apiVersion ldvalue.OptionalString) ldvalue.Value {
	children := ldvalue.ArrayBuildWithCapacity(len(s.Children))
	for _, n := range s.Children {
		switch c := n.(type) {
		case *Suite:
			children.Add(suiteToValue(c, ldvalue.OptionalString{}))
		case *Test:
			children.Add(testToValue(c))
		}
	}
	obj := ldvalue.ObjectBuild().
		Set(PropName, ldvalue.String(s.Name)).
		Set(PropType, ldvalue.String(string(NodeTypeSuite))).
		Set(PropChildren, children.Build())
	if apiVersion.IsDefined() {
		obj.Set(PropAPIVersion, ldvalue.String(apiVersion.StringValue()))
	}
	return obj.Build()
}

func testToValue(t *Test) ldvalue.Value {
	transactions := ldvalue.ArrayBuildWithCapacity(len(t.Transactions))
	for _, tx := range t.Transactions {
		transactions.Add(ldvalue.ObjectBuild().
			Set(PropRequestMethod, ldvalue.String(tx.RequestMethod)).
			Set(PropRequestURL, ldvalue.String(tx.RequestURL)).
			Set(PropRequest, ldvalue.String(tx.Request)).
			Set(PropResponse, ldvalue.String(tx.Response)).
			Build())
	}
	obj := ldvalue.ObjectBuild().
		Set(PropName, ldvalue.String(t.Name)).
		Set(PropType, ldvalue.String(string(NodeTypeTest))).
		Set(PropOutcome, ldvalue.String(string(t.Outcome))).
		Set(PropElapsedTime, ldvalue.Float64(t.ElapsedTime.Seconds())).
		Set(PropTransactions, transactions.Build())
	if t.Detail != nil {
		obj.Set(PropOutcomeDetail, ldvalue.ObjectBuild().
			Set(PropExceptionClass, ldvalue.String(t.Detail.ExceptionClass)).
			Set(PropMessage, ldvalue.String(t.Detail.Message)).
			Set(PropTrace, ldvalue.String(t.Detail.Trace)).
			Build())
	}
	if t.TrafficArtifact != "" {
		obj.Set(PropTrafficArtifact, ldvalue.String(t.TrafficArtifact))
	}
	return obj.Build()
}

// TreeFromValue is the inverse of Tree.ToValue. The API version is read from the top-level
// records, so a report without suites decodes with no API version.
func TreeFromValue(v ldvalue.Value) (*Tree, error) {
	if v.Type() != ldvalue.ArrayType {
		return nil, fmt.Errorf("report must be an array, got %s", v.Type())
	}
	tree := &Tree{Suites: []*Suite{}}
	for i := 0; i < v.Count(); i++ {
		item := v.GetByIndex(i)
		s, err := suiteFromValue(item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if version := item.GetByKey(PropAPIVersion); version.IsString() && !tree.APIVersion.IsDefined() {
			tree.APIVersion = ldvalue.NewOptionalString(version.StringValue())
		}
		tree.Suites = append(tree.Suites, s)
	}
	return tree, nil
}

func suiteFromValue(v ldvalue.Value) (*Suite, error) {
	if err := checkNode(v, NodeTypeSuite); err != nil {
		return nil, err
	}
	s := &Suite{Name: v.GetByKey(PropName).StringValue(), Children: []Node{}}
	children := v.GetByKey(PropChildren)
	for i := 0; i < children.Count(); i++ {
		c := children.GetByIndex(i)
		switch NodeType(c.GetByKey(PropType).StringValue()) {
		case NodeTypeSuite:
			child, err := suiteFromValue(c)
			if err != nil {
				return nil, fmt.Errorf("suite %q: %w", s.Name, err)
			}
			s.Children = append(s.Children, child)
		case NodeTypeTest:
			t, err := testFromValue(c)
			if err != nil {
				return nil, fmt.Errorf("suite %q: %w", s.Name, err)
			}
			s.Children = append(s.Children, t)
		default:
			return nil, fmt.Errorf("suite %q: child %d has unknown type %s", s.Name, i, c.GetByKey(PropType).JSONString())
		}
	}
	return s, nil
}

func testFromValue(v ldvalue.Value) (*Test, error) {
	if err := checkNode(v, NodeTypeTest); err != nil {
		return nil, err
	}
	t := &Test{
		Name:            v.GetByKey(PropName).StringValue(),
		ElapsedTime:     time.Duration(math.Round(v.GetByKey(PropElapsedTime).Float64Value() * float64(time.Second))),
		TrafficArtifact: v.GetByKey(PropTrafficArtifact).StringValue(),
		Transactions:    []Transaction{},
	}
	outcome, ok := ParseOutcome(v.GetByKey(PropOutcome).StringValue())
	if !ok {
		return nil, fmt.Errorf("test %q has invalid outcome %s", t.Name, v.GetByKey(PropOutcome).JSONString())
	}
	t.Outcome = outcome
	if d := v.GetByKey(PropOutcomeDetail); d.Type() == ldvalue.ObjectType {
		t.Detail = &OutcomeDetail{
			ExceptionClass: d.GetByKey(PropExceptionClass).StringValue(),
			Message:        d.GetByKey(PropMessage).StringValue(),
			Trace:          d.GetByKey(PropTrace).StringValue(),
		}
	}
	txs := v.GetByKey(PropTransactions)
	for i := 0; i < txs.Count(); i++ {
		tx := txs.GetByIndex(i)
		t.Transactions = append(t.Transactions, Transaction{
			RequestMethod: tx.GetByKey(PropRequestMethod).StringValue(),
			RequestURL:    tx.GetByKey(PropRequestURL).StringValue(),
			Request:       tx.GetByKey(PropRequest).StringValue(),
			Response:      tx.GetByKey(PropResponse).StringValue(),
		})
	}
	return t, nil
}

func checkNode(v ldvalue.Value, want NodeType) error {
	if v.Type() != ldvalue.ObjectType {
		return fmt.Errorf("expected a %s object, got %s", want, v.Type())
	}
	if got := NodeType(v.GetByKey(PropType).StringValue()); got != want {
		return fmt.Errorf("expected type %q, got %q", want, got)
	}
	if !v.GetByKey(PropName).IsString() {
		return fmt.Errorf("%s record has no name", want)
	}
	return nil
}
