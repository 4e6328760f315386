package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskWIPCacheWarmup pre-populates profitability report caches.
	TaskWIPCacheWarmup = "wip:cache_warmup"
)

// WIPWarmupPayload scopes one warmup run.
type WIPWarmupPayload struct {
	// LookbackDays selects clients with ledger activity in the window.
	LookbackDays int `json:"lookback_days"`
}

// NewWIPWarmupTask constructs an Asynq task for the warmup job.
func NewWIPWarmupTask(lookbackDays int) (*asynq.Task, error) {
	data, err := json.Marshal(WIPWarmupPayload{LookbackDays: lookbackDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWIPCacheWarmup, data), nil
}
