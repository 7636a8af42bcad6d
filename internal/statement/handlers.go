package statement

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mizuki-dev/backend-juku/internal/common"
)

// Handler exposes HTTP handlers for statement endpoints.
type Handler struct {
	Service *Service
}

// GetStatement handles GET /api/v1/statements/{month}.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	guardianID, month, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	stmt, err := h.Service.BuildStatement(r.Context(), guardianID, month)
	if err != nil {
		common.RenderError(w, err, http.StatusInternalServerError)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": stmt})
}

// GetMiles handles GET /api/v1/statements/{month}/miles.
func (h *Handler) GetMiles(w http.ResponseWriter, r *http.Request) {
	guardianID, month, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	summary, err := h.Service.MilesSummary(r.Context(), guardianID, month)
	if err != nil {
		common.RenderError(w, err, http.StatusInternalServerError)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

func (h *Handler) requestScope(w http.ResponseWriter, r *http.Request) (guardianID, month string, ok bool) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "statement service not configured", nil)
		return "", "", false
	}
	guardianID, authed := common.GuardianID(r.Context())
	if !authed {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return "", "", false
	}
	month = chi.URLParam(r, "month")
	if !common.ValidBillingMonth(month) {
		common.JSONError(w, http.StatusBadRequest, "INVALID_MONTH", "billing month must be formatted as YYYY-MM", nil)
		return "", "", false
	}
	return guardianID, month, true
}
