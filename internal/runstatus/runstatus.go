// Package runstatus publishes live dispatch-run progress to Redis so the API
// can report on a run while it is still sending.
package runstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Trandung-02/mail-job-manager/internal/dispatch"
	"github.com/Trandung-02/mail-job-manager/internal/pkg/logger"
)

const defaultTTL = 24 * time.Hour

// Tracker writes run progress snapshots under dispatch:run:<runID>.
// Every method is best-effort: Redis being down degrades live status, never
// a dispatch run.
type Tracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTracker creates a Tracker. A nil client yields a no-op tracker so
// callers can wire it unconditionally.
func NewTracker(client *redis.Client) *Tracker {
	return &Tracker{client: client, ttl: defaultTTL}
}

func runKey(runID string) string {
	return fmt.Sprintf("dispatch:run:%s", runID)
}

// Update stores the latest progress snapshot for a run.
func (t *Tracker) Update(ctx context.Context, runID string, p dispatch.Progress) {
	if t == nil || t.client == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := t.client.Set(ctx, runKey(runID), data, t.ttl).Err(); err != nil {
		logger.Warn("run status update failed", "run_id", runID, "error", err.Error())
	}
}

// Get returns the last known progress for a run. The second return is false
// when the run is unknown or the entry expired.
func (t *Tracker) Get(ctx context.Context, runID string) (dispatch.Progress, bool, error) {
	var p dispatch.Progress
	if t == nil || t.client == nil {
		return p, false, nil
	}
	data, err := t.client.Get(ctx, runKey(runID)).Bytes()
	if err == redis.Nil {
		return p, false, nil
	}
	if err != nil {
		return p, false, fmt.Errorf("failed to read run status %s: %w", runID, err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, false, fmt.Errorf("failed to decode run status %s: %w", runID, err)
	}
	return p, true, nil
}
