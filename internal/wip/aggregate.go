package wip

import "github.com/shopspring/decimal"

// ApplyCostOverride zeroes the cost of every increment whose employee is in
// the partner cost-exclusion set. Owner-class time is never charged against
// profitability, whatever cost the ledger reported for it.
func ApplyCostOverride(incs []Increment, excluded map[string]struct{}) {
	if len(excluded) == 0 {
		return
	}
	for i := range incs {
		if incs[i].EmployeeCode == "" {
			continue
		}
		if _, ok := excluded[incs[i].EmployeeCode]; ok {
			incs[i].Cost = decimal.Zero
		}
	}
}

// Aggregation holds the outcome of one fold: the overall bucket plus one
// bucket per master service line that saw activity. Master codes with no
// contributing rows get no bucket.
type Aggregation struct {
	Overall  *Bucket
	ByMaster map[string]*Bucket
}

// Aggregate folds normalized increments into master service-line buckets and
// the overall bucket. The fold is order-independent: every operation is an
// addition or a set insert.
func Aggregate(incs []Increment, externalToMaster map[string]string) *Aggregation {
	agg := &Aggregation{
		Overall:  newBucket(""),
		ByMaster: make(map[string]*Bucket),
	}
	for _, inc := range incs {
		master := inc.MasterCode
		if master == "" {
			var ok bool
			master, ok = externalToMaster[inc.ExternalCode]
			if !ok {
				master = UnknownMasterCode
			}
		}
		bucket, ok := agg.ByMaster[master]
		if !ok {
			bucket = newBucket(master)
			agg.ByMaster[master] = bucket
		}
		if bucket.MasterName == "" && inc.MasterName != "" {
			bucket.MasterName = inc.MasterName
		}
		bucket.add(inc)
		agg.Overall.add(inc)
	}
	return agg
}
