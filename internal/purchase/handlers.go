package purchase

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mizuki-dev/backend-juku/internal/auth"
	"github.com/mizuki-dev/backend-juku/internal/common"
)

// Registrar creates guardian accounts; satisfied by the auth service.
type Registrar interface {
	Register(ctx context.Context, name, email, password string, roles []string) (auth.Guardian, error)
}

// Handler exposes HTTP handlers for purchase listing and admin mutations.
type Handler struct {
	Service   *Service
	Guardians Registrar
}

// ListPurchases handles GET /api/v1/purchases?month=YYYY-MM.
func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	guardianID, ok := common.GuardianID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	month := r.URL.Query().Get("month")
	if !common.ValidBillingMonth(month) {
		common.JSONError(w, http.StatusBadRequest, "INVALID_MONTH", "billing month must be formatted as YYYY-MM", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	items, pagination, err := h.Service.ListPurchases(r.Context(), guardianID, month, page, perPage)
	if err != nil {
		common.RenderError(w, err, http.StatusInternalServerError)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": pagination})
}

type createGuardianRequest struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
}

// CreateGuardian handles POST /api/v1/admin/guardians.
func (h *Handler) CreateGuardian(w http.ResponseWriter, r *http.Request) {
	if h.Guardians == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "guardian registrar not configured", nil)
		return
	}
	var req createGuardianRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	guardian, err := h.Guardians.Register(r.Context(), req.Name, req.Email, req.Password, req.Roles)
	if err != nil {
		common.RenderError(w, err, http.StatusInternalServerError)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": guardian})
}

// CreateStudent handles POST /api/v1/admin/students.
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var in CreateStudentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	student, err := h.Service.CreateStudent(r.Context(), in)
	if err != nil {
		common.RenderError(w, err, http.StatusInternalServerError)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{
			"id":          uuidString(student.ID),
			"guardian_id": uuidString(student.GuardianID),
			"name":        student.Name,
		},
	})
}

// CreatePurchase handles POST /api/v1/admin/purchases.
func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var in CreatePurchaseInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	view, err := h.Service.CreatePurchase(r.Context(), in)
	if err != nil {
		common.RenderError(w, err, http.StatusInternalServerError)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": view})
}

// DeletePurchase handles DELETE /api/v1/admin/purchases/{id}.
func (h *Handler) DeletePurchase(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeletePurchase(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.RenderError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateFsDiscount handles POST /api/v1/admin/fs-discounts.
func (h *Handler) CreateFsDiscount(w http.ResponseWriter, r *http.Request) {
	var in CreateFsDiscountInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	discount, err := h.Service.CreateFsDiscount(r.Context(), in)
	if err != nil {
		common.RenderError(w, err, http.StatusInternalServerError)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": discount})
}

// DeleteFsDiscount handles DELETE /api/v1/admin/fs-discounts/{id}.
func (h *Handler) DeleteFsDiscount(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteFsDiscount(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.RenderError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpsertMileAccount handles PUT /api/v1/admin/mile-accounts/{guardianID}.
func (h *Handler) UpsertMileAccount(w http.ResponseWriter, r *http.Request) {
	var in UpsertMileAccountInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	in.GuardianID = chi.URLParam(r, "guardianID")
	account, err := h.Service.UpsertMileAccount(r.Context(), in)
	if err != nil {
		common.RenderError(w, err, http.StatusInternalServerError)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": account})
}
