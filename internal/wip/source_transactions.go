package wip

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// transactionSource scans individual ledger transactions. It is the original
// full-scan strategy: slowest, but the only one that carries per-row employee
// attribution and observation timestamps.
type transactionSource struct {
	pool   *pgxpool.Pool
	rowCap int
}

func (s *transactionSource) Name() string { return StrategyTransactions }

func (s *transactionSource) SupportsWindow() bool { return true }

func (s *transactionSource) Fetch(ctx context.Context, clientCode string, window PeriodWindow, externalCodes []string) ([]Increment, error) {
	var sb strings.Builder
	sb.WriteString(`
SELECT task_id, external_code, COALESCE(employee_code, ''), tx_type,
       amount, COALESCE(cost, 0), COALESCE(hours, 0), observed_at
FROM wip_transactions
WHERE client_code = $1`)
	args := []interface{}{clientCode}

	if window.Bounded() {
		args = append(args, window.Start, window.End.AddDate(0, 0, 1))
		fmt.Fprintf(&sb, " AND observed_at >= $%d AND observed_at < $%d", len(args)-1, len(args))
	}
	if len(externalCodes) > 0 {
		args = append(args, externalCodes)
		fmt.Fprintf(&sb, " AND external_code = ANY($%d)", len(args))
	}
	// One past the cap so an overflow is detected instead of silently
	// truncating the fold.
	args = append(args, s.rowCap+1)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	incs := make([]Increment, 0, 256)
	for rows.Next() {
		var row LedgerRow
		var txType string
		if err := rows.Scan(&row.TaskID, &row.ExternalCode, &row.EmployeeCode, &txType,
			&row.Amount, &row.Cost, &row.Hours, &row.ObservedAt); err != nil {
			return nil, err
		}
		row.ClientCode = clientCode
		row.Type = TransactionType(txType)
		inc, err := normalizeTransaction(row)
		if err != nil {
			return nil, err
		}
		incs = append(incs, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(incs) > s.rowCap {
		return nil, fmt.Errorf("wip: ledger scan for client %s exceeds row cap %d", clientCode, s.rowCap)
	}
	return incs, nil
}

// normalizeTransaction routes a raw row's amount into the accumulator field
// its transaction type feeds, and derives the balance fields the way the
// stored aggregation does, so the strategies stay reconcilable.
func normalizeTransaction(row LedgerRow) (Increment, error) {
	inc := Increment{
		TaskID:       row.TaskID,
		ExternalCode: row.ExternalCode,
		EmployeeCode: row.EmployeeCode,
		Cost:         row.Cost,
		Hours:        row.Hours,
		ObservedAt:   row.ObservedAt,
	}
	switch row.Type {
	case TxTime:
		inc.Time = row.Amount
	case TxDisbursement:
		inc.Disb = row.Amount
	case TxAdjustmentTime:
		inc.AdjTime = row.Amount
	case TxAdjustmentDisb:
		inc.AdjDisb = row.Amount
	case TxFeeTime:
		inc.FeeTime = row.Amount
	case TxFeeDisb:
		inc.FeeDisb = row.Amount
	default:
		return Increment{}, fmt.Errorf("wip: unknown transaction type %q on task %d", row.Type, row.TaskID)
	}
	inc.BalTime = inc.Time.Add(inc.AdjTime).Add(inc.AdjDisb).Sub(inc.FeeTime).Sub(inc.FeeDisb)
	inc.BalDisb = inc.Disb
	inc.BalWIP = inc.BalTime.Add(inc.BalDisb)
	return inc, nil
}
