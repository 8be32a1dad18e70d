package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/fintera-cuotas/internal/integrations"
	"github.com/sjperalta/fintera-cuotas/internal/reconciliation"
	"github.com/sjperalta/fintera-cuotas/internal/schedule"
	"github.com/sjperalta/fintera-cuotas/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	integrations.Catalog
}

func (stubCatalog) GetAgreementContext(ctx context.Context, agreementID string) (schedule.AgreementContext, error) {
	if agreementID != "AGR-1" {
		return schedule.AgreementContext{}, integrations.ErrNotFound
	}
	return schedule.AgreementContext{AgreementID: "AGR-1", Product: "Lote 12", MaxFinancing: 6}, nil
}

func (stubCatalog) GetProductMeta(ctx context.Context, product string) (integrations.ProductMeta, error) {
	return integrations.ProductMeta{Name: product, Price: 600_000, MaxFinancing: 6}, nil
}

var handlerToday = time.Date(2026, time.May, 10, 0, 0, 0, 0, time.UTC)

func newPlanRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := services.NewPlanService(
		services.NewPlanStore(time.Hour),
		stubCatalog{},
		nil, nil, nil, nil,
		func() time.Time { return handlerToday },
	)
	h := NewPlanHandler(svc)

	r := gin.New()
	r.POST("/plans", h.Create)
	r.GET("/plans/:plan_id", h.Show)
	r.DELETE("/plans/:plan_id", h.Discard)
	r.PATCH("/plans/:plan_id/installments/:sequence", h.EditInstallment)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func createPlan(t *testing.T, r http.Handler, count int) services.PlanView {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/plans", fmt.Sprintf(`{"plan": {"agreement_id": "AGR-1", "count": %d}}`, count))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var view services.PlanView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	return view
}

func TestPlanHandler_Create(t *testing.T) {
	r := newPlanRouter()

	view := createPlan(t, r, 6)
	assert.Equal(t, int64(600_000), view.Plan.Total)
	assert.True(t, view.Plan.IsMaxFinancing)
	require.Len(t, view.Plan.Installments, 6)
	assert.Len(t, view.Capabilities, 6)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"unknown agreement", `{"agreement_id": "AGR-404", "count": 3}`, http.StatusNotFound},
		{"missing agreement", `{"count": 3}`, http.StatusBadRequest},
		{"blank agreement", `{"agreement_id": "   ", "count": 3}`, http.StatusBadRequest},
		{"bad anchor", `{"agreement_id": "AGR-1", "count": 3, "anchor_date": "10/05/2026"}`, http.StatusBadRequest},
		{"zero count", `{"agreement_id": "AGR-1", "count": 0}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/plans", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestPlanHandler_EditInstallment(t *testing.T) {
	r := newPlanRouter()
	view := createPlan(t, r, 6)
	base := "/plans/" + view.Plan.ID + "/installments/"

	t.Run("first installment redistributes", func(t *testing.T) {
		w := doJSON(r, http.MethodPatch, base+"1", `{"value": 150000}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var got services.PlanView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, int64(150_000), got.Plan.Installments[0].Value)
		assert.Equal(t, int64(90_000), got.Plan.Installments[5].Value)
	})

	t.Run("locked installment is a conflict", func(t *testing.T) {
		w := doJSON(r, http.MethodPatch, base+"3", `{"value": 50000}`)
		assert.Equal(t, http.StatusConflict, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.EqualValues(t, 3, body["sequence"])
		assert.NotEmpty(t, body["error"])
	})

	t.Run("bad sequence", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPatch, base+"0", `{"value": 1}`).Code)
		assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPatch, base+"uno", `{"value": 1}`).Code)
	})

	t.Run("bad due date", func(t *testing.T) {
		w := doJSON(r, http.MethodPatch, base+"1", `{"due_date": "mañana"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown plan", func(t *testing.T) {
		w := doJSON(r, http.MethodPatch, "/plans/nope/installments/1", `{"value": 1}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestPlanHandler_ShowAndDiscard(t *testing.T) {
	r := newPlanRouter()
	view := createPlan(t, r, 3)

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/plans/"+view.Plan.ID, "").Code)
	assert.Equal(t, http.StatusNoContent, doJSON(r, http.MethodDelete, "/plans/"+view.Plan.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, "/plans/"+view.Plan.ID, "").Code)
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", fmt.Errorf("%w: AGR-9", services.ErrNotFound), http.StatusNotFound},
		{"invalid input", services.ErrInvalidInput, http.StatusBadRequest},
		{"paid rows", services.ErrInvalidState, http.StatusConflict},
		{"superseded", reconciliation.ErrSuperseded, http.StatusConflict},
		{"upstream", fmt.Errorf("%w: %w", services.ErrUpstream, errors.New("dial tcp")), http.StatusBadGateway},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tt.err)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	run := func(checks map[string]HealthCheck) (int, map[string]interface{}) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
		NewHealthHandler(checks).Index(c)

		var body map[string]interface{}
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		return w.Code, body
	}

	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	code, body := run(map[string]HealthCheck{"database": ok})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, body = run(map[string]HealthCheck{"database": ok, "redis": down})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])
	deps := body["dependencies"].(map[string]interface{})
	assert.Equal(t, "connection refused", deps["redis"])
}
