package wip

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Query is the single operation the engine exposes: one client, one period
// filter, optionally restricted to a service-line sub-group.
type Query struct {
	ClientCode string
	Period     PeriodFilter
	SubGroup   string
}

// CacheMetrics receives cache hit/miss observations. Nil-safe via the
// service's guard; implemented by the observability package.
type CacheMetrics interface {
	CacheHit()
	CacheMiss()
}

// ServiceConfig collects the engine's collaborators.
type ServiceConfig struct {
	Source    LedgerSource
	Mapper    ServiceLineMapper
	Directory Directory
	Cache     *Cache
	Resolver  *PeriodResolver

	// ProductionIncludesDisb selects the deployment's gross-production
	// convention; see Calculator.
	ProductionIncludesDisb bool

	Logger  *slog.Logger
	Metrics CacheMetrics
}

// Service runs the aggregation pipeline: resolve period, consult the cache,
// and on a miss fetch reference data and ledger rows, apply the cost
// override, fold, derive metrics and assemble the report. It is stateless
// between runs; the cache is the only shared state.
type Service struct {
	source    LedgerSource
	mapper    ServiceLineMapper
	directory Directory
	cache     *Cache
	resolver  *PeriodResolver
	calc      *Calculator
	logger    *slog.Logger
	metrics   CacheMetrics
	now       func() time.Time

	computeGroup singleflight.Group
}

// NewService wires the engine. The active gross-production convention is
// logged once here so a mismatch during a strategy migration is visible.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	convention := "time-only"
	if cfg.ProductionIncludesDisb {
		convention = "time+disbursements"
	}
	logger.Info("wip engine configured",
		slog.String("strategy", cfg.Source.Name()),
		slog.String("gross_production", convention))
	return &Service{
		source:    cfg.Source,
		mapper:    cfg.Mapper,
		directory: cfg.Directory,
		cache:     cfg.Cache,
		resolver:  cfg.Resolver,
		calc:      NewCalculator(cfg.ProductionIncludesDisb),
		logger:    logger,
		metrics:   cfg.Metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Report resolves the period window and serves the profitability report,
// computing through the full pipeline on a cache miss. Concurrent identical
// requests share one computation.
func (s *Service) Report(ctx context.Context, q Query) (*Report, error) {
	if q.ClientCode == "" {
		return nil, &ValidationError{Field: "clientId", Message: "client id is required"}
	}
	window, err := s.resolver.Resolve(q.Period)
	if err != nil {
		return nil, err
	}
	if window.Bounded() && !s.source.SupportsWindow() {
		return nil, &ValidationError{Field: "mode", Message: fmt.Sprintf("the %s source serves all-time balances only", s.source.Name())}
	}

	key := s.cache.BuildKey(ctx, reportKeyParts(q, s.source.Name(), s.calc.productionIncludesDisb)...)

	missed := false
	loader := func(ctx context.Context) (interface{}, error) {
		missed = true
		value, err, _ := s.computeGroup.Do(key, func() (interface{}, error) {
			return s.compute(ctx, q, window)
		})
		if err != nil {
			return nil, err
		}
		return value, nil
	}

	var report Report
	if err := s.cache.FetchJSON(ctx, key, &report, loader); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		if missed {
			s.metrics.CacheMiss()
		} else {
			s.metrics.CacheHit()
		}
	}
	return &report, nil
}

func (s *Service) compute(ctx context.Context, q Query, window PeriodWindow) (*Report, error) {
	runID := uuid.NewString()

	exists, err := s.directory.ClientExists(ctx, q.ClientCode)
	if err != nil {
		return nil, fmt.Errorf("wip: resolve client: %w", err)
	}
	if !exists {
		return nil, ErrClientNotFound
	}

	var externalCodes []string
	if q.SubGroup != "" {
		externalCodes, err = s.mapper.ExternalCodesForSubGroup(ctx, q.SubGroup)
		if err != nil {
			return nil, err
		}
		if len(externalCodes) == 0 {
			return nil, &ValidationError{Field: "subGroup", Message: "unknown sub-group code"}
		}
	}

	// Reference data has no ordering dependency on the ledger rows, so the
	// three fetches run concurrently.
	var (
		mapping  map[string]string
		excluded map[string]struct{}
		incs     []Increment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		mapping, err = s.mapper.ExternalToMaster(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		excluded, err = s.directory.CostExclusionCodes(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		incs, err = s.source.Fetch(gctx, q.ClientCode, window, externalCodes)
		if err != nil {
			if _, ok := err.(*ValidationError); ok {
				return err
			}
			s.logger.Error("wip ledger fetch failed",
				slog.String("run_id", runID),
				slog.String("strategy", s.source.Name()),
				slog.String("window", window.String()),
				slog.Any("error", err))
			return &UpstreamError{Strategy: s.source.Name(), Window: window, Err: err}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ApplyCostOverride(incs, excluded)
	agg := Aggregate(incs, mapping)
	return s.assemble(ctx, agg, window)
}

func (s *Service) assemble(ctx context.Context, agg *Aggregation, window PeriodWindow) (*Report, error) {
	codes := make([]string, 0, len(agg.ByMaster))
	for code := range agg.ByMaster {
		if code != UnknownMasterCode {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	lines, err := s.mapper.MasterNames(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("wip: resolve master names: %w", err)
	}
	names := make(map[string]string, len(lines))
	for _, line := range lines {
		names[line.Code] = line.Name
	}

	byMaster := make([]Metrics, 0, len(agg.ByMaster))
	for _, bucket := range agg.ByMaster {
		if bucket.MasterName == "" {
			bucket.MasterName = names[bucket.MasterCode]
		}
		byMaster = append(byMaster, s.calc.Metrics(bucket))
	}
	sort.Slice(byMaster, func(i, j int) bool { return byMaster[i].MasterCode < byMaster[j].MasterCode })

	lastUpdated := agg.Overall.lastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = s.now()
	}

	return &Report{
		Overall:             s.calc.Metrics(agg.Overall),
		ByMasterServiceLine: byMaster,
		MasterServiceLines:  lines,
		TaskCount:           agg.Overall.TaskCount(),
		LastUpdated:         lastUpdated,
		Period:              window,
	}, nil
}
