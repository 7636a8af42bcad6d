package statement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/mizuki-dev/backend-juku/internal/common"
)

// GuardianLister enumerates guardians with billable activity in a month.
type GuardianLister interface {
	ListActiveGuardianIDsByMonth(ctx context.Context, billingMonth string) ([]pgtype.UUID, error)
}

// Enqueuer fans a month out into one warm task per active guardian.
type Enqueuer struct {
	Client   *asynq.Client
	Guardian GuardianLister
	Queue    string
	Logger   zerolog.Logger
}

// EnqueueMonth enqueues a warm task for every guardian with purchases in the
// given month and returns how many tasks were queued.
func (e *Enqueuer) EnqueueMonth(ctx context.Context, month string) (int, error) {
	guardianIDs, err := e.Guardian.ListActiveGuardianIDsByMonth(ctx, month)
	if err != nil {
		return 0, fmt.Errorf("list active guardians: %w", err)
	}

	queued := 0
	for _, id := range guardianIDs {
		guardianID := uuidString(id)
		if guardianID == "" {
			continue
		}
		task, err := NewWarmTask(guardianID, month)
		if err != nil {
			return queued, err
		}
		opts := []asynq.Option{asynq.TaskID(fmt.Sprintf("warm:%s:%s", guardianID, month))}
		if e.Queue != "" {
			opts = append(opts, asynq.Queue(e.Queue))
		}
		if _, err := e.Client.EnqueueContext(ctx, task, opts...); err != nil {
			// A duplicate task ID means this pair is already queued.
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				continue
			}
			return queued, fmt.Errorf("enqueue warm task: %w", err)
		}
		queued++
	}
	e.Logger.Info().Str("month", month).Int("queued", queued).Msg("statement warm fan-out")
	return queued, nil
}

type warmRequest struct {
	Month string `json:"month"`
}

// WarmHandler handles POST /api/v1/admin/statements/warm.
type WarmHandler struct {
	Enqueuer *Enqueuer
}

func (h *WarmHandler) Warm(w http.ResponseWriter, r *http.Request) {
	if h.Enqueuer == nil || h.Enqueuer.Client == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "warm queue not configured", nil)
		return
	}
	var req warmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	if !common.ValidBillingMonth(req.Month) {
		common.JSONError(w, http.StatusBadRequest, "INVALID_MONTH", "billing month must be formatted as YYYY-MM", nil)
		return
	}
	queued, err := h.Enqueuer.EnqueueMonth(r.Context(), req.Month)
	if err != nil {
		common.RenderError(w, err, http.StatusInternalServerError)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{
		"data": map[string]any{"month": req.Month, "queued": queued},
	})
}
