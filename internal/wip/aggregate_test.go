package wip

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ledgerRow(taskID int64, external, employee string, txType TransactionType, amount, cost, hours string) LedgerRow {
	return LedgerRow{
		ClientCode:   "ACME",
		TaskID:       taskID,
		ExternalCode: external,
		EmployeeCode: employee,
		Type:         txType,
		Amount:       dec(amount),
		Cost:         dec(cost),
		Hours:        dec(hours),
		ObservedAt:   time.Date(2023, time.May, 10, 0, 0, 0, 0, time.UTC),
	}
}

func mustNormalize(t *testing.T, rows ...LedgerRow) []Increment {
	t.Helper()
	incs := make([]Increment, 0, len(rows))
	for _, row := range rows {
		inc, err := normalizeTransaction(row)
		require.NoError(t, err)
		incs = append(incs, inc)
	}
	return incs
}

var testMapping = map[string]string{
	"T-AUDIT-1": "AUDIT",
	"T-AUDIT-2": "AUDIT",
	"T-TAX-1":   "TAX",
}

func TestNormalizeTransactionRoutesByType(t *testing.T) {
	cases := []struct {
		txType TransactionType
		field  func(Increment) decimal.Decimal
	}{
		{TxTime, func(i Increment) decimal.Decimal { return i.Time }},
		{TxDisbursement, func(i Increment) decimal.Decimal { return i.Disb }},
		{TxAdjustmentTime, func(i Increment) decimal.Decimal { return i.AdjTime }},
		{TxAdjustmentDisb, func(i Increment) decimal.Decimal { return i.AdjDisb }},
		{TxFeeTime, func(i Increment) decimal.Decimal { return i.FeeTime }},
		{TxFeeDisb, func(i Increment) decimal.Decimal { return i.FeeDisb }},
	}
	for _, tc := range cases {
		inc, err := normalizeTransaction(ledgerRow(1, "T-AUDIT-1", "E1", tc.txType, "150.25", "0", "0"))
		require.NoError(t, err)
		assert.True(t, tc.field(inc).Equal(dec("150.25")), "type %s", tc.txType)
	}
}

func TestNormalizeTransactionRejectsUnknownType(t *testing.T) {
	_, err := normalizeTransaction(ledgerRow(1, "T-AUDIT-1", "E1", "WRITE_OFF", "10", "0", "0"))
	require.Error(t, err)
}

func TestAggregateConservation(t *testing.T) {
	incs := mustNormalize(t,
		ledgerRow(1, "T-AUDIT-1", "E1", TxTime, "1000", "400", "10"),
		ledgerRow(2, "T-AUDIT-2", "E2", TxDisbursement, "250", "0", "0"),
		ledgerRow(3, "T-TAX-1", "E1", TxTime, "500", "200", "5"),
		ledgerRow(3, "T-TAX-1", "E1", TxAdjustmentTime, "-100", "0", "0"),
		ledgerRow(4, "X-NOPE", "E3", TxFeeTime, "-300", "0", "0"),
	)

	agg := Aggregate(incs, testMapping)

	sum := func(field func(*Bucket) decimal.Decimal) decimal.Decimal {
		total := decimal.Zero
		for _, b := range agg.ByMaster {
			total = total.Add(field(b))
		}
		return total
	}
	fields := map[string]func(*Bucket) decimal.Decimal{
		"time":    func(b *Bucket) decimal.Decimal { return b.Time },
		"disb":    func(b *Bucket) decimal.Decimal { return b.Disb },
		"adjTime": func(b *Bucket) decimal.Decimal { return b.AdjTime },
		"adjDisb": func(b *Bucket) decimal.Decimal { return b.AdjDisb },
		"feeTime": func(b *Bucket) decimal.Decimal { return b.FeeTime },
		"feeDisb": func(b *Bucket) decimal.Decimal { return b.FeeDisb },
		"cost":    func(b *Bucket) decimal.Decimal { return b.Cost },
		"hours":   func(b *Bucket) decimal.Decimal { return b.Hours },
		"balWIP":  func(b *Bucket) decimal.Decimal { return b.BalWIP },
		"balTime": func(b *Bucket) decimal.Decimal { return b.BalTime },
		"balDisb": func(b *Bucket) decimal.Decimal { return b.BalDisb },
		"wipProv": func(b *Bucket) decimal.Decimal { return b.WIPProvision },
	}
	for name, field := range fields {
		assert.True(t, sum(field).Equal(field(agg.Overall)),
			"%s: buckets sum to %s, overall %s", name, sum(field), field(agg.Overall))
	}
}

func TestAggregateUnknownMappingRouting(t *testing.T) {
	incs := mustNormalize(t,
		ledgerRow(1, "T-AUDIT-1", "E1", TxTime, "100", "0", "1"),
		ledgerRow(2, "X-NOPE", "E1", TxTime, "40", "0", "1"),
	)

	agg := Aggregate(incs, testMapping)

	require.Contains(t, agg.ByMaster, UnknownMasterCode)
	assert.True(t, agg.ByMaster[UnknownMasterCode].Time.Equal(dec("40")))
	assert.True(t, agg.Overall.Time.Equal(dec("140")))
}

func TestAggregateDistinctTaskCounting(t *testing.T) {
	incs := mustNormalize(t,
		ledgerRow(7, "T-AUDIT-1", "E1", TxTime, "100", "0", "1"),
		ledgerRow(7, "T-AUDIT-1", "E1", TxTime, "200", "0", "2"),
		ledgerRow(7, "T-AUDIT-1", "E1", TxDisbursement, "30", "0", "0"),
	)

	agg := Aggregate(incs, testMapping)

	assert.Equal(t, 1, agg.ByMaster["AUDIT"].TaskCount())
	assert.Equal(t, 1, agg.Overall.TaskCount())
}

func TestAggregatePreCountedTasks(t *testing.T) {
	incs := []Increment{
		{MasterCode: "AUDIT", TaskCount: 4, Time: dec("100")},
		{MasterCode: "TAX", TaskCount: 2, Time: dec("50")},
	}

	agg := Aggregate(incs, nil)

	assert.Equal(t, 4, agg.ByMaster["AUDIT"].TaskCount())
	assert.Equal(t, 6, agg.Overall.TaskCount())
}

func TestAggregateCreatesNoEmptyBuckets(t *testing.T) {
	agg := Aggregate(nil, testMapping)
	assert.Empty(t, agg.ByMaster)
	assert.Equal(t, 0, agg.Overall.TaskCount())
}

func TestAggregateOrderIndependence(t *testing.T) {
	rows := []LedgerRow{
		ledgerRow(1, "T-AUDIT-1", "E1", TxTime, "1000", "400", "10"),
		ledgerRow(2, "T-TAX-1", "E2", TxAdjustmentDisb, "-50", "0", "0"),
		ledgerRow(3, "T-AUDIT-2", "E1", TxFeeDisb, "-75", "0", "0"),
	}
	forward := mustNormalize(t, rows[0], rows[1], rows[2])
	reversed := mustNormalize(t, rows[2], rows[1], rows[0])

	a := Aggregate(forward, testMapping)
	b := Aggregate(reversed, testMapping)

	assert.True(t, a.Overall.BalWIP.Equal(b.Overall.BalWIP))
	assert.True(t, a.ByMaster["AUDIT"].FeeDisb.Equal(b.ByMaster["AUDIT"].FeeDisb))
	assert.Equal(t, a.Overall.TaskCount(), b.Overall.TaskCount())
}

func TestApplyCostOverride(t *testing.T) {
	incs := mustNormalize(t,
		ledgerRow(1, "T-AUDIT-1", "PARTNER9", TxTime, "1000", "650", "8"),
		ledgerRow(2, "T-AUDIT-1", "E2", TxTime, "500", "210", "4"),
	)

	ApplyCostOverride(incs, map[string]struct{}{"PARTNER9": {}})
	agg := Aggregate(incs, testMapping)

	assert.True(t, agg.ByMaster["AUDIT"].Cost.Equal(dec("210")))
	assert.True(t, agg.Overall.Cost.Equal(dec("210")))
}

func TestApplyCostOverrideIgnoresBlankEmployee(t *testing.T) {
	incs := mustNormalize(t,
		ledgerRow(1, "T-AUDIT-1", "", TxTime, "1000", "650", "8"),
	)

	ApplyCostOverride(incs, map[string]struct{}{"": {}})

	assert.True(t, incs[0].Cost.Equal(dec("650")))
}
