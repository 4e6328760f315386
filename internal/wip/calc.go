package wip

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Calculator derives profitability ratios from aggregated buckets.
//
// Two gross-production conventions exist across deployments: the newer one
// folds disbursements into production, the older one counts time alone and
// carries disbursements only as an outstanding balance. The convention is
// fixed per deployment and must never vary within a run, so it is bound at
// construction, not passed per call.
type Calculator struct {
	productionIncludesDisb bool
}

// NewCalculator binds the deployment's gross-production convention.
func NewCalculator(productionIncludesDisb bool) *Calculator {
	return &Calculator{productionIncludesDisb: productionIncludesDisb}
}

// Metrics derives the report values for one bucket. Every division is
// zero-guarded: a zero denominator yields a zero ratio, never NaN or an
// infinity. Negative totals are valid and pass through unclamped.
func (c *Calculator) Metrics(b *Bucket) Metrics {
	grossProduction := b.Time
	if c.productionIncludesDisb {
		grossProduction = grossProduction.Add(b.Disb)
	}
	ltdAdjustment := b.AdjTime.Add(b.AdjDisb)
	netRevenue := grossProduction.Add(ltdAdjustment)
	grossProfit := netRevenue.Sub(b.Cost)

	m := Metrics{
		MasterCode:      b.MasterCode,
		MasterName:      b.MasterName,
		GrossProduction: grossProduction,
		LTDAdjustment:   ltdAdjustment,
		NetRevenue:      netRevenue,
		GrossProfit:     grossProfit,
		LTDTime:         b.Time,
		LTDDisb:         b.Disb,
		LTDCost:         b.Cost,
		LTDHours:        b.Hours,
		BalWIP:          b.BalWIP,
		BalTime:         b.BalTime,
		BalDisb:         b.BalDisb,
		WIPProvision:    b.WIPProvision,
		TaskCount:       b.TaskCount(),
	}
	if !grossProduction.IsZero() {
		m.AdjustmentPercentage = ltdAdjustment.Div(grossProduction).Mul(hundred)
	}
	if !netRevenue.IsZero() {
		m.GrossProfitPercentage = grossProfit.Div(netRevenue).Mul(hundred)
	}
	if !b.Hours.IsZero() {
		m.AverageChargeoutRate = grossProduction.Div(b.Hours)
		m.AverageRecoveryRate = netRevenue.Div(b.Hours)
	}
	return m
}
