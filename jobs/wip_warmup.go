package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/praxis-erp/praxis/internal/jobs"
	"github.com/praxis-erp/praxis/internal/wip"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// WIPWarmupJob pre-populates profitability report caches for clients with
// recent ledger activity, so dashboard requests land on warm keys.
type WIPWarmupJob struct {
	Service *wip.Service
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewWIPWarmupJob wires dependencies for the warmup handler.
func NewWIPWarmupJob(service *wip.Service, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *WIPWarmupJob {
	return &WIPWarmupJob{
		Service: service,
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes warmup tasks.
func (j *WIPWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("wip warmup: handler not configured")
	}
	var payload WIPWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.LookbackDays <= 0 {
		payload.LookbackDays = 30
	}

	tracker := j.metrics().Track(TaskWIPCacheWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("lookback_days", payload.LookbackDays))
	logger.Info("starting wip cache warmup")

	clients, err := j.fetchActiveClients(ctx, payload.LookbackDays)
	if err != nil {
		resultErr = err
		logger.Error("load warmup clients", slog.Any("error", err))
		return resultErr
	}
	if len(clients) == 0 {
		logger.Info("no active clients discovered for warmup")
		return resultErr
	}

	start := j.now()
	warmed := 0
	for _, clientCode := range clients {
		if err := j.warmClient(ctx, clientCode); err != nil {
			resultErr = err
			logger.Error("warm client", slog.String("client", clientCode), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}

	logger.Info("completed wip cache warmup", slog.Int("clients", warmed), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *WIPWarmupJob) warmClient(ctx context.Context, clientCode string) error {
	if j.Service == nil {
		return nil
	}
	clientCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	// Current fiscal year plus the all-time header view; these are the two
	// windows every dashboard visit requests first. Snapshot deployments
	// reject bounded windows, so the fiscal warm is skipped there.
	if _, err := j.Service.Report(clientCtx, wip.Query{ClientCode: clientCode, Period: wip.PeriodFilter{Mode: "fiscal"}}); err != nil {
		var vErr *wip.ValidationError
		if !errors.As(err, &vErr) {
			return err
		}
	}
	if _, err := j.Service.Report(clientCtx, wip.Query{ClientCode: clientCode}); err != nil {
		return err
	}
	return nil
}

func (j *WIPWarmupJob) fetchActiveClients(ctx context.Context, lookbackDays int) ([]string, error) {
	if j.Pool == nil {
		return nil, errors.New("wip warmup: pool not configured")
	}
	const query = `
SELECT DISTINCT client_code
FROM wip_transactions
WHERE observed_at >= $1
ORDER BY client_code`
	cutoff := j.now().AddDate(0, 0, -lookbackDays)
	rows, err := j.Pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]string, 0)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		clients = append(clients, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return clients, nil
}

func (j *WIPWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskWIPCacheWarmup))
	}
	return slog.Default().With(slog.String("job", TaskWIPCacheWarmup))
}

func (j *WIPWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *WIPWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
