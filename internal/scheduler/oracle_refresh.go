package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/poolvault/internal/events"
	"github.com/aristath/poolvault/internal/modules/oracle"
)

// OracleRefreshJob keeps the safety gate's price samples inside the
// freshness window between rebalance attempts.
type OracleRefreshJob struct {
	gate    *oracle.Gate
	events  *events.Manager
	timeout time.Duration
	log     zerolog.Logger
}

// NewOracleRefreshJob creates the refresh job.
func NewOracleRefreshJob(gate *oracle.Gate, ev *events.Manager, timeout time.Duration, log zerolog.Logger) *OracleRefreshJob {
	return &OracleRefreshJob{
		gate:    gate,
		events:  ev,
		timeout: timeout,
		log:     log.With().Str("job", "oracle_refresh").Logger(),
	}
}

// Name returns the job name
func (j *OracleRefreshJob) Name() string {
	return "oracle_refresh"
}

// Run pulls fresh samples for every tracked asset
func (j *OracleRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.gate.Refresh(ctx); err != nil {
		// Partial refreshes are tolerated; the gate keeps last good samples
		// and stale ones simply fail the next safety check.
		j.log.Warn().Err(err).Msg("Oracle refresh incomplete")
		return err
	}

	status := j.gate.Status(ctx)
	j.events.Emit(events.OracleRefreshed, j.Name(), map[string]interface{}{
		"assets": len(status.Assets),
		"safe":   status.Safe,
	})
	return nil
}
