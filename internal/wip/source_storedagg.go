package wip

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// storedAggSource invokes the server-side set-based aggregation. The function
// groups by master service line on the database, already applies the partner
// cost exclusion, and merges the adjustment and fee pairs into single
// figures. It returns no balance columns, so those are recomputed here from
// the merged figures before anything reaches the aggregator.
type storedAggSource struct {
	pool *pgxpool.Pool
}

func (s *storedAggSource) Name() string { return StrategyStoredAgg }

func (s *storedAggSource) SupportsWindow() bool { return true }

func (s *storedAggSource) Fetch(ctx context.Context, clientCode string, window PeriodWindow, externalCodes []string) ([]Increment, error) {
	const query = `
SELECT master_code, master_name, task_count,
       ltd_time, ltd_disb, ltd_adjustments, ltd_fees_billed,
       ltd_cost, ltd_hours
FROM wip_service_line_summary($1, $2, $3, $4)`

	var from, to interface{}
	if window.Bounded() {
		from = window.Start
		to = window.End.AddDate(0, 0, 1)
	}
	var codes interface{}
	if len(externalCodes) > 0 {
		codes = externalCodes
	}

	rows, err := s.pool.Query(ctx, query, clientCode, from, to, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	incs := make([]Increment, 0, 16)
	for rows.Next() {
		var inc Increment
		// The merged figures land in the *Time halves; the calculator only
		// ever consumes the pairwise sums, so the totals are unchanged.
		if err := rows.Scan(&inc.MasterCode, &inc.MasterName, &inc.TaskCount,
			&inc.Time, &inc.Disb, &inc.AdjTime, &inc.FeeTime,
			&inc.Cost, &inc.Hours); err != nil {
			return nil, err
		}
		inc.BalTime = inc.Time.Add(inc.AdjTime).Sub(inc.FeeTime)
		inc.BalDisb = inc.Disb
		inc.BalWIP = inc.BalTime.Add(inc.BalDisb)
		incs = append(incs, inc)
	}
	return incs, rows.Err()
}
