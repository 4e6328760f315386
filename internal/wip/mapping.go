package wip

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ServiceLineMapper resolves the two-level service-line hierarchy: external
// (fine-grained) codes roll up many-to-one into master codes, and sub-groups
// expand one-to-many into external codes. The mapping is read-only reference
// data refreshed out of band.
type ServiceLineMapper interface {
	// ExternalToMaster returns the full external→master lookup table.
	ExternalToMaster(ctx context.Context) (map[string]string, error)
	// ExternalCodesForSubGroup expands a sub-group into its external codes.
	ExternalCodesForSubGroup(ctx context.Context, subGroup string) ([]string, error)
	// MasterNames resolves display names for the given master codes.
	MasterNames(ctx context.Context, codes []string) ([]MasterServiceLine, error)
}

type serviceLineRepo struct {
	pool *pgxpool.Pool
}

// NewServiceLineMapper builds a Postgres-backed mapper.
func NewServiceLineMapper(pool *pgxpool.Pool) ServiceLineMapper {
	return &serviceLineRepo{pool: pool}
}

func (r *serviceLineRepo) ExternalToMaster(ctx context.Context) (map[string]string, error) {
	const query = `
SELECT external_code, master_code
FROM service_line_mappings`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("wip: load service line mappings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var external, master string
		if err := rows.Scan(&external, &master); err != nil {
			return nil, err
		}
		out[external] = master
	}
	return out, rows.Err()
}

func (r *serviceLineRepo) ExternalCodesForSubGroup(ctx context.Context, subGroup string) ([]string, error) {
	const query = `
SELECT external_code
FROM service_line_subgroups
WHERE subgroup_code = $1
ORDER BY external_code`
	rows, err := r.pool.Query(ctx, query, subGroup)
	if err != nil {
		return nil, fmt.Errorf("wip: expand subgroup %s: %w", subGroup, err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (r *serviceLineRepo) MasterNames(ctx context.Context, codes []string) ([]MasterServiceLine, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	const query = `
SELECT code, name
FROM master_service_lines
WHERE code = ANY($1)
ORDER BY name`
	rows, err := r.pool.Query(ctx, query, codes)
	if err != nil {
		return nil, fmt.Errorf("wip: load master service line names: %w", err)
	}
	defer rows.Close()

	var lines []MasterServiceLine
	for rows.Next() {
		var line MasterServiceLine
		if err := rows.Scan(&line.Code, &line.Name); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
