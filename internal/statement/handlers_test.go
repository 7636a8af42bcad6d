package statement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/mizuki-dev/backend-juku/internal/common"
)

func statementRequest(t *testing.T, month string, authed bool) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/statements/"+month, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("month", month)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if authed {
		ctx = common.WithGuardianID(ctx, testGuardianID)
	}
	return req.WithContext(ctx)
}

func TestGetStatementRejectsInvalidMonth(t *testing.T) {
	handler := &Handler{Service: newTestService(t, fourCourseQuerier(t))}

	rr := httptest.NewRecorder()
	handler.GetStatement(rr, statementRequest(t, "2025-13", true))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetStatementRequiresAuth(t *testing.T) {
	handler := &Handler{Service: newTestService(t, fourCourseQuerier(t))}

	rr := httptest.NewRecorder()
	handler.GetStatement(rr, statementRequest(t, "2025-04", false))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetStatementReturnsPayload(t *testing.T) {
	handler := &Handler{Service: newTestService(t, fourCourseQuerier(t))}

	rr := httptest.NewRecorder()
	handler.GetStatement(rr, statementRequest(t, "2025-04", true))
	require.Equal(t, http.StatusOK, rr.Code)

	var envelope struct {
		Data Statement `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	require.Equal(t, "2025-04", envelope.Data.Month)
	require.Equal(t, int64(31500), envelope.Data.PayableAmount)
}

func TestGetMilesReturnsSummary(t *testing.T) {
	handler := &Handler{Service: newTestService(t, fourCourseQuerier(t))}

	rr := httptest.NewRecorder()
	handler.GetMiles(rr, statementRequest(t, "2025-04", true))
	require.Equal(t, http.StatusOK, rr.Code)

	var envelope struct {
		Data MilesSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	require.Equal(t, 4, envelope.Data.Miles.TotalCourses)
	require.Equal(t, int64(500), envelope.Data.MileDiscount)
}
