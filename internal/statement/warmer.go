package statement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/mizuki-dev/backend-juku/internal/lock"
	"github.com/mizuki-dev/backend-juku/internal/obs"
)

// TaskTypeWarm is the asynq task type for statement cache warming.
const TaskTypeWarm = "statement:warm"

// WarmPayload identifies one guardian/month statement to precompute.
type WarmPayload struct {
	GuardianID string `json:"guardian_id"`
	Month      string `json:"month"`
}

// NewWarmTask builds an asynq task for one guardian/month pair.
func NewWarmTask(guardianID, month string) (*asynq.Task, error) {
	payload, err := json.Marshal(WarmPayload{GuardianID: guardianID, Month: month})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeWarm, payload), nil
}

// Warmer consumes warm tasks, recomputing statements under a per-pair lock
// so concurrent workers never duplicate the same computation.
type Warmer struct {
	Service *Service
	Locker  lock.Locker
	LockTTL time.Duration
	Logger  zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (w *Warmer) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload WarmPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		countWarm("invalid")
		return fmt.Errorf("decode warm payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.GuardianID == "" || payload.Month == "" {
		countWarm("invalid")
		return fmt.Errorf("warm payload missing guardian or month: %w", asynq.SkipRetry)
	}

	key := lockKey(payload.GuardianID, payload.Month)
	err := w.Locker.TryWithLock(ctx, key, w.lockTTL(), func(ctx context.Context) error {
		return w.Service.Warm(ctx, payload.GuardianID, payload.Month)
	})
	switch {
	case errors.Is(err, lock.ErrNotObtained):
		countWarm("skipped")
		w.Logger.Debug().
			Str("guardian_id", payload.GuardianID).
			Str("month", payload.Month).
			Msg("statement warm already in flight")
		return nil
	case err != nil:
		countWarm("error")
		return fmt.Errorf("warm statement %s/%s: %w", payload.GuardianID, payload.Month, err)
	}

	countWarm("ok")
	return nil
}

func (w *Warmer) lockTTL() time.Duration {
	if w.LockTTL <= 0 {
		return 30 * time.Second
	}
	return w.LockTTL
}

func lockKey(guardianID, month string) string {
	return fmt.Sprintf("statement:lock:%s:%s", guardianID, month)
}

func countWarm(result string) {
	if obs.WarmTasksTotal == nil {
		return
	}
	obs.WarmTasksTotal.WithLabelValues(result).Inc()
}
