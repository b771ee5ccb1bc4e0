package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func makeSampleTree() *Tree {
	return &Tree{
		APIVersion: ldvalue.NewOptionalString("v2"),
		Suites: []*Suite{
			{
				Name: "S",
				Children: []Node{
					&Test{
						Name:        "t1",
						ElapsedTime: 12 * time.Millisecond,
						Outcome:     OutcomeFailure,
						Detail: &OutcomeDetail{
							ExceptionClass: "AssertionError",
							Message:        "x!=y",
							Trace:          "#0 main",
						},
						TrafficArtifact: "/tmp/a.har",
						Transactions: []Transaction{
							{RequestMethod: "GET", RequestURL: "/x", Request: "GET /x HTTP/1.1\r\n\r\n", Response: "HTTP/1.1 200 OK\r\n\r\n"},
						},
					},
					&Suite{Name: "inner", Children: []Node{}},
					&Test{Name: "t2", Outcome: OutcomePassed, Transactions: []Transaction{}},
				},
			},
			{Name: "S", Children: []Node{}},
		},
	}
}

func TestParseOutcome(t *testing.T) {
	for _, o := range AllOutcomes {
		parsed, ok := ParseOutcome(string(o))
		assert.True(t, ok)
		assert.Equal(t, o, parsed)
	}
	_, ok := ParseOutcome("exploded")
	assert.False(t, ok)
}

func TestSuiteAccessorsPreserveOrder(t *testing.T) {
	s := makeSampleTree().Suites[0]
	tests := s.Tests()
	require.Len(t, tests, 2)
	assert.Equal(t, "t1", tests[0].Name)
	assert.Equal(t, "t2", tests[1].Name)
	require.Len(t, s.Suites(), 1)
	assert.Equal(t, "inner", s.Suites()[0].Name)

	empty := &Suite{Name: "empty"}
	assert.NotNil(t, empty.Tests())
	assert.Len(t, empty.Tests(), 0)
}

func TestWalkIsPreOrder(t *testing.T) {
	var names []string
	makeSampleTree().Walk(func(path []string, n Node) {
		names = append(names, string(n.NodeType())+":"+n.NodeName())
	})
	assert.Equal(t, []string{"suite:S", "test:t1", "suite:inner", "test:t2", "suite:S"}, names)
}

func TestCountsAndOK(t *testing.T) {
	tree := makeSampleTree()
	counts := tree.Counts()
	assert.Equal(t, 1, counts[OutcomeFailure])
	assert.Equal(t, 1, counts[OutcomePassed])
	assert.False(t, tree.OK())

	tree.Suites[0].Children = tree.Suites[0].Children[1:]
	assert.True(t, tree.OK())
}

func TestToValueSchema(t *testing.T) {
	v := makeSampleTree().ToValue()
	require.Equal(t, 2, v.Count())

	s := v.GetByIndex(0)
	assert.Equal(t, "S", s.GetByKey(PropName).StringValue())
	assert.Equal(t, "suite", s.GetByKey(PropType).StringValue())
	assert.Equal(t, "v2", s.GetByKey(PropAPIVersion).StringValue())

	test := s.GetByKey(PropChildren).GetByIndex(0)
	assert.Equal(t, "test", test.GetByKey(PropType).StringValue())
	assert.Equal(t, "failure", test.GetByKey(PropOutcome).StringValue())
	assert.InDelta(t, 0.012, test.GetByKey(PropElapsedTime).Float64Value(), 1e-9)
	assert.Equal(t, "/tmp/a.har", test.GetByKey(PropTrafficArtifact).StringValue())
	tx := test.GetByKey(PropTransactions).GetByIndex(0)
	assert.Equal(t, "GET", tx.GetByKey(PropRequestMethod).StringValue())
	assert.Equal(t, "/x", tx.GetByKey(PropRequestURL).StringValue())

	inner := s.GetByKey(PropChildren).GetByIndex(1)
	assert.True(t, inner.GetByKey(PropAPIVersion).IsNull(), "only top-level suites carry the API version")
	assert.Equal(t, 0, inner.GetByKey(PropChildren).Count())
	assert.Equal(t, ldvalue.ArrayType, inner.GetByKey(PropChildren).Type())

	passed := s.GetByKey(PropChildren).GetByIndex(2)
	assert.True(t, passed.GetByKey(PropOutcomeDetail).IsNull())
	assert.True(t, passed.GetByKey(PropTrafficArtifact).IsNull())
}

func TestTreeFromValueRoundTrip(t *testing.T) {
	tree := makeSampleTree()
	decoded, err := TreeFromValue(ldvalue.Parse([]byte(tree.ToValue().JSONString())))
	require.NoError(t, err)
	assert.Equal(t, tree, decoded)
}

func TestTreeFromValueEmptyReport(t *testing.T) {
	tree := &Tree{Suites: []*Suite{}}
	decoded, err := TreeFromValue(ldvalue.Parse([]byte(tree.ToValue().JSONString())))
	require.NoError(t, err)
	assert.Equal(t, tree, decoded)
	assert.NotNil(t, decoded.Suites)
}

func TestTreeFromValueErrors(t *testing.T) {
	_, err := TreeFromValue(ldvalue.String("x"))
	assert.Error(t, err)

	_, err = TreeFromValue(ldvalue.Parse([]byte(`[{"name":"a","type":"test"}]`)))
	assert.Error(t, err)

	_, err = TreeFromValue(ldvalue.Parse([]byte(`[{"name":"a","type":"suite","children":[{"name":"t","type":"test","outcome":"bad"}]}]`)))
	assert.Error(t, err)

	_, err = TreeFromValue(ldvalue.Parse([]byte(`[{"name":"a","type":"suite","children":[{"name":"t","type":"other"}]}]`)))
	assert.Error(t, err)
}

func TestTextSafe(t *testing.T) {
	assert.Equal(t, "plain text", TextSafe([]byte("plain text")))
	assert.Equal(t, "héllo", TextSafe([]byte("héllo")))
	assert.Equal(t, "ÿþ\u0000A", TextSafe([]byte{0xff, 0xfe, 0x00, 'A'}))
	assert.Equal(t, "", TextSafe(nil))
}
