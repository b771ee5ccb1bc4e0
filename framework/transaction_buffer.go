package framework

import "github.com/launchdarkly/test-report-aggregator/report"

// TransactionBuffer accumulates the HTTP transactions of the test that is currently open, in the
// order they completed. It is owned by a ReportBuilder and is not safe for concurrent use on its
// own.
type TransactionBuffer struct {
	items []report.Transaction
}

func (b *TransactionBuffer) Push(tx report.Transaction) {
	b.items = append(b.items, tx)
}

func (b *TransactionBuffer) Len() int {
	return len(b.items)
}

// Drain removes and returns every buffered transaction. The result is never nil.
func (b *TransactionBuffer) Drain() []report.Transaction {
	ret := b.items
	if ret == nil {
		ret = []report.Transaction{}
	}
	b.items = nil
	return ret
}

func (b *TransactionBuffer) Reset() {
	b.items = nil
}
