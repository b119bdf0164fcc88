package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/poolvault/internal/modules/ledger"
)

// SnapshotJob writes a daily point-in-time record of the pool for share
// price and value tracking over time.
type SnapshotJob struct {
	service *ledger.Service
	log     zerolog.Logger
}

// NewSnapshotJob creates the snapshot job.
func NewSnapshotJob(service *ledger.Service, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		service: service,
		log:     log.With().Str("job", "vault_snapshot").Logger(),
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "vault_snapshot"
}

// Run persists the current vault snapshot
func (j *SnapshotJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return j.service.SaveSnapshot(ctx)
}
