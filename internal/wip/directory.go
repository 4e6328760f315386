package wip

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory is the employee/client directory boundary. The engine only needs
// the partner cost-exclusion set and a client existence check from it.
type Directory interface {
	// CostExclusionCodes returns the employee codes whose time carries no
	// cost against profitability (owner-class staff). Resolved once per run.
	CostExclusionCodes(ctx context.Context) (map[string]struct{}, error)
	// ClientExists reports whether the client code resolves at all.
	ClientExists(ctx context.Context, clientCode string) (bool, error)
}

type directoryRepo struct {
	pool *pgxpool.Pool
}

// NewDirectory builds a Postgres-backed directory lookup.
func NewDirectory(pool *pgxpool.Pool) Directory {
	return &directoryRepo{pool: pool}
}

func (r *directoryRepo) CostExclusionCodes(ctx context.Context) (map[string]struct{}, error) {
	const query = `
SELECT employee_code
FROM employees
WHERE cost_excluded = TRUE`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("wip: load cost exclusion set: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out[code] = struct{}{}
	}
	return out, rows.Err()
}

func (r *directoryRepo) ClientExists(ctx context.Context, clientCode string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM clients WHERE code = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, clientCode).Scan(&exists); err != nil {
		return false, fmt.Errorf("wip: check client %s: %w", clientCode, err)
	}
	return exists, nil
}
