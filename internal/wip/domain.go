// Package wip implements the profitability and work-in-progress aggregation
// engine: it folds per-task ledger activity into master service-line buckets
// and derives the profitability ratios surfaced on client dashboards.
package wip

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType discriminates raw ledger rows by the accumulator they feed.
type TransactionType string

const (
	TxTime           TransactionType = "TIME"
	TxDisbursement   TransactionType = "DISBURSEMENT"
	TxAdjustmentTime TransactionType = "ADJUSTMENT_TIME"
	TxAdjustmentDisb TransactionType = "ADJUSTMENT_DISBURSEMENT"
	TxFeeTime        TransactionType = "FEE_TIME"
	TxFeeDisb        TransactionType = "FEE_DISBURSEMENT"
)

// UnknownMasterCode is the sentinel bucket for external service-line codes
// that have no master mapping. It never appears in the named service-line
// list of a report.
const UnknownMasterCode = "UNKNOWN"

// LedgerRow is one observed financial fact for a task, as returned by the
// raw-transaction source. Amounts are signed; Cost and Hours may be absent
// upstream and arrive as decimal zero.
type LedgerRow struct {
	ClientCode   string
	TaskID       int64
	ExternalCode string
	EmployeeCode string
	Type         TransactionType
	Amount       decimal.Decimal
	Cost         decimal.Decimal
	Hours        decimal.Decimal
	ObservedAt   time.Time
}

// Increment is the normalized contribution every ledger source strategy
// produces, regardless of whether the upstream rows were raw transactions,
// per-task snapshots, or server-side grouped summaries. All shape
// reconciliation happens before this point; the aggregator only ever adds.
type Increment struct {
	TaskID       int64
	ExternalCode string
	// MasterCode and MasterName are populated only by sources that group
	// server-side; otherwise the aggregator resolves them via the mapper.
	MasterCode   string
	MasterName   string
	EmployeeCode string

	Time    decimal.Decimal
	Disb    decimal.Decimal
	AdjTime decimal.Decimal
	AdjDisb decimal.Decimal
	FeeTime decimal.Decimal
	FeeDisb decimal.Decimal
	Cost    decimal.Decimal
	Hours   decimal.Decimal

	BalWIP       decimal.Decimal
	BalTime      decimal.Decimal
	BalDisb      decimal.Decimal
	WIPProvision decimal.Decimal

	// TaskCount is set only by sources that group server-side, where the
	// distinct-task count per row is already final. Ungrouped sources leave
	// it zero and set TaskID instead.
	TaskCount int

	// ObservedAt is zero when the source carries no per-row timestamp.
	ObservedAt time.Time
}

// Bucket accumulates ledger activity for one grouping key. It is created
// fresh per aggregation run and never persisted.
type Bucket struct {
	MasterCode string
	MasterName string

	Time    decimal.Decimal
	Disb    decimal.Decimal
	AdjTime decimal.Decimal
	AdjDisb decimal.Decimal
	FeeTime decimal.Decimal
	FeeDisb decimal.Decimal
	Cost    decimal.Decimal
	Hours   decimal.Decimal

	BalWIP       decimal.Decimal
	BalTime      decimal.Decimal
	BalDisb      decimal.Decimal
	WIPProvision decimal.Decimal

	tasks       map[int64]struct{}
	taskTally   int
	lastUpdated time.Time
}

func newBucket(masterCode string) *Bucket {
	return &Bucket{MasterCode: masterCode, tasks: make(map[int64]struct{})}
}

func (b *Bucket) add(inc Increment) {
	b.Time = b.Time.Add(inc.Time)
	b.Disb = b.Disb.Add(inc.Disb)
	b.AdjTime = b.AdjTime.Add(inc.AdjTime)
	b.AdjDisb = b.AdjDisb.Add(inc.AdjDisb)
	b.FeeTime = b.FeeTime.Add(inc.FeeTime)
	b.FeeDisb = b.FeeDisb.Add(inc.FeeDisb)
	b.Cost = b.Cost.Add(inc.Cost)
	b.Hours = b.Hours.Add(inc.Hours)
	b.BalWIP = b.BalWIP.Add(inc.BalWIP)
	b.BalTime = b.BalTime.Add(inc.BalTime)
	b.BalDisb = b.BalDisb.Add(inc.BalDisb)
	b.WIPProvision = b.WIPProvision.Add(inc.WIPProvision)
	if inc.TaskCount > 0 {
		b.taskTally += inc.TaskCount
	} else {
		b.tasks[inc.TaskID] = struct{}{}
	}
	if inc.ObservedAt.After(b.lastUpdated) {
		b.lastUpdated = inc.ObservedAt
	}
}

// TaskCount reports the number of distinct tasks that contributed to the
// bucket. Multiple rows for one task count once; rows from server-grouped
// sources arrive pre-counted.
func (b *Bucket) TaskCount() int {
	return len(b.tasks) + b.taskTally
}

// Metrics is the derived, externally visible report for one bucket.
type Metrics struct {
	MasterCode string `json:"masterCode,omitempty"`
	MasterName string `json:"masterName,omitempty"`

	GrossProduction       decimal.Decimal `json:"grossProduction"`
	LTDAdjustment         decimal.Decimal `json:"ltdAdjustment"`
	NetRevenue            decimal.Decimal `json:"netRevenue"`
	AdjustmentPercentage  decimal.Decimal `json:"adjustmentPercentage"`
	GrossProfit           decimal.Decimal `json:"grossProfit"`
	GrossProfitPercentage decimal.Decimal `json:"grossProfitPercentage"`
	AverageChargeoutRate  decimal.Decimal `json:"averageChargeoutRate"`
	AverageRecoveryRate   decimal.Decimal `json:"averageRecoveryRate"`

	LTDTime  decimal.Decimal `json:"ltdTime"`
	LTDDisb  decimal.Decimal `json:"ltdDisb"`
	LTDCost  decimal.Decimal `json:"ltdCost"`
	LTDHours decimal.Decimal `json:"ltdHours"`

	BalWIP       decimal.Decimal `json:"balWIP"`
	BalTime      decimal.Decimal `json:"balTime"`
	BalDisb      decimal.Decimal `json:"balDisb"`
	WIPProvision decimal.Decimal `json:"wipProvision"`

	TaskCount int `json:"taskCount"`
}

// MasterServiceLine pairs a master code with its display name.
type MasterServiceLine struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Report is the assembled result for one client and period window.
type Report struct {
	Overall             Metrics             `json:"overall"`
	ByMasterServiceLine []Metrics           `json:"byMasterServiceLine"`
	MasterServiceLines  []MasterServiceLine `json:"masterServiceLines"`
	TaskCount           int                 `json:"taskCount"`
	LastUpdated         time.Time           `json:"lastUpdated"`
	Period              PeriodWindow        `json:"period"`
}
