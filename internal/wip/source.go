package wip

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Source strategy names, as configured per deployment.
const (
	StrategyTransactions = "transactions"
	StrategySnapshot     = "snapshot"
	StrategyStoredAgg    = "storedagg"
)

// DefaultRowCap bounds uncapped ledger scans so a pathological client cannot
// pull an unbounded table into memory.
const DefaultRowCap = 100000

// LedgerSource is one of the three interchangeable ledger query strategies.
// Every implementation normalizes its rows into Increment values before
// returning, so the aggregator never sees strategy-specific shapes.
type LedgerSource interface {
	// Name identifies the strategy for logs and cache keys.
	Name() string
	// SupportsWindow reports whether the strategy can honor a bounded
	// period window. The snapshot strategy cannot: its rows are life-to-date
	// balances with no date dimension.
	SupportsWindow() bool
	// Fetch returns the normalized increments for one client. A non-empty
	// externalCodes slice restricts the scan to those service-line codes.
	Fetch(ctx context.Context, clientCode string, window PeriodWindow, externalCodes []string) ([]Increment, error)
}

// NewLedgerSource builds the configured strategy. rowCap <= 0 falls back to
// DefaultRowCap.
func NewLedgerSource(strategy string, pool *pgxpool.Pool, rowCap int) (LedgerSource, error) {
	if rowCap <= 0 {
		rowCap = DefaultRowCap
	}
	switch strategy {
	case StrategyTransactions:
		return &transactionSource{pool: pool, rowCap: rowCap}, nil
	case StrategySnapshot:
		return &snapshotSource{pool: pool, rowCap: rowCap}, nil
	case StrategyStoredAgg:
		return &storedAggSource{pool: pool}, nil
	default:
		return nil, fmt.Errorf("wip: unknown ledger source strategy %q", strategy)
	}
}
