package wip

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// snapshotSource reads one pre-aggregated balance row per task. The upstream
// snapshot is life-to-date, so this strategy only serves the all-time window
// used for current outstanding balances; callers asking for a bounded period
// are rejected at validation.
type snapshotSource struct {
	pool   *pgxpool.Pool
	rowCap int
}

func (s *snapshotSource) Name() string { return StrategySnapshot }

func (s *snapshotSource) SupportsWindow() bool { return false }

func (s *snapshotSource) Fetch(ctx context.Context, clientCode string, window PeriodWindow, externalCodes []string) ([]Increment, error) {
	if window.Bounded() {
		return nil, &ValidationError{Field: "mode", Message: "the snapshot source serves all-time balances only"}
	}

	var sb strings.Builder
	sb.WriteString(`
SELECT task_id, external_code, COALESCE(employee_code, ''),
       ltd_time, ltd_disb, ltd_adj_time, ltd_adj_disb,
       ltd_fee_time, ltd_fee_disb, ltd_cost, ltd_hours,
       bal_wip, bal_time, bal_disb, wip_provision
FROM wip_task_balances
WHERE client_code = $1`)
	args := []interface{}{clientCode}

	if len(externalCodes) > 0 {
		args = append(args, externalCodes)
		fmt.Fprintf(&sb, " AND external_code = ANY($%d)", len(args))
	}
	args = append(args, s.rowCap+1)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	incs := make([]Increment, 0, 64)
	for rows.Next() {
		var inc Increment
		if err := rows.Scan(&inc.TaskID, &inc.ExternalCode, &inc.EmployeeCode,
			&inc.Time, &inc.Disb, &inc.AdjTime, &inc.AdjDisb,
			&inc.FeeTime, &inc.FeeDisb, &inc.Cost, &inc.Hours,
			&inc.BalWIP, &inc.BalTime, &inc.BalDisb, &inc.WIPProvision); err != nil {
			return nil, err
		}
		incs = append(incs, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(incs) > s.rowCap {
		return nil, fmt.Errorf("wip: balance snapshot for client %s exceeds row cap %d", clientCode, s.rowCap)
	}
	return incs, nil
}
