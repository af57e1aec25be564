package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/reconciliation-service/internal/application"
	"github.com/wms-platform/reconciliation-service/internal/config"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/memory"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/idempotency"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
	"github.com/wms-platform/reconciliation-service/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, ready func(ctx context.Context) error) *gin.Engine {
	t.Helper()

	logger := logging.NewNop()
	m := metrics.New(metrics.DefaultConfig(config.ServiceName))
	store := memory.NewStore(cloudevents.NewEventFactory(cloudevents.SourceReconciliation))

	ledger := application.NewLedger(store, application.NopAlertPublisher{}, m, logger, 3)
	service := application.NewReconciliationService(store, ledger, application.NopCompletionNotifier{}, m, logger)

	if ready == nil {
		ready = store.Ping
	}

	return setupRouter(routerDeps{
		service:     service,
		idempotency: idempotency.DefaultConfig(config.ServiceName, idempotency.NewMemoryKeyRepository(), logger, m),
		metrics:     m,
		ready:       ready,
		logger:      logger,
	})
}

func do(router *gin.Engine, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func openAssignment(t *testing.T, router *gin.Engine) {
	t.Helper()
	rec := do(router, http.MethodPost, "/api/v1/assignments", map[string]any{
		"assignmentId": "A-1",
		"orderId":      "ORD-1",
		"batchId":      "BATCH-1",
		"productId":    "PROD-1",
		"sizes":        map[string]int{"M": 50, "L": 30},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestHealthAndReadiness(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := do(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	down := newTestRouter(t, func(context.Context) error { return errors.New("store unreachable") })
	rec = do(down, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "store unreachable")
}

func TestReplacementCycleOverHTTP(t *testing.T) {
	router := newTestRouter(t, nil)
	openAssignment(t, router)

	rec := do(router, http.MethodPost, "/api/v1/assignments/A-1/sizes/M/picks", map[string]any{"quantity": 40})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(router, http.MethodPost, "/api/v1/assignments/A-1/sizes/M/qc-reviews", map[string]any{
		"approved": 35,
		"rejected": 5,
		"remarks":  "loose stitching",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	afterQC := decode[application.SizeBucketDTO](t, rec)
	assert.Equal(t, 5, afterQC.AwaitingReplacement)
	assert.Equal(t, 15, afterQC.RemainingToPick)
	assert.Equal(t, 0, afterQC.Unverified)

	rec = do(router, http.MethodPost, "/api/v1/assignments/A-1/sizes/M/picks", map[string]any{"quantity": 10},
		middleware.HeaderOperatorID, "picker-7")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bucket := decode[application.SizeBucketDTO](t, rec)
	assert.Equal(t, 45, bucket.Picked)
	assert.Equal(t, 5, bucket.ReplacedCumulative)
	assert.Equal(t, 5, bucket.RemainingToPick)
	assert.Equal(t, 10, bucket.Unverified)
	assert.Equal(t, int64(4), bucket.Version)

	rec = do(router, http.MethodGet, "/api/v1/assignments/A-1/sizes/m", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, bucket.Picked, decode[application.SizeBucketDTO](t, rec).Picked)

	rec = do(router, http.MethodGet, "/api/v1/assignments/A-1/sizes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[application.SizeBucketListDTO](t, rec)
	require.Len(t, list.Buckets, 2)
	assert.Equal(t, 80, list.Totals.Assigned)
	assert.Equal(t, 45, list.Totals.Picked)

	rec = do(router, http.MethodGet, "/api/v1/assignments/A-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assignment := decode[application.AssignmentDTO](t, rec)
	require.NotNil(t, assignment.Summary)
	assert.Equal(t, "43.75", assignment.Summary.CompletionPercent)
	assert.Equal(t, "87.50", assignment.Summary.YieldPercent)

	rec = do(router, http.MethodGet, "/api/v1/assignments/A-1/sizes/M/picks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	picks := decode[struct {
		Picks []application.PickEventDTO `json:"picks"`
	}](t, rec)
	require.Len(t, picks.Picks, 2)
	assert.Equal(t, 5, picks.Picks[1].Freed)
	assert.Equal(t, "picker-7", picks.Picks[1].Picker)

	rec = do(router, http.MethodGet, "/api/v1/assignments/A-1/sizes/M/qc-reviews", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reviews := decode[struct {
		QCReviews []application.QCReviewDTO `json:"qcReviews"`
	}](t, rec)
	require.Len(t, reviews.QCReviews, 1)
	assert.Equal(t, 5, reviews.QCReviews[0].Rejected)
}

func TestErrorResponses(t *testing.T) {
	router := newTestRouter(t, nil)
	openAssignment(t, router)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"pick exceeds remaining", http.MethodPost, "/api/v1/assignments/A-1/sizes/M/picks",
			map[string]any{"quantity": 51}, http.StatusUnprocessableEntity, "EXCEEDS_REMAINING"},
		{"qc exceeds unverified", http.MethodPost, "/api/v1/assignments/A-1/sizes/M/qc-reviews",
			map[string]any{"approved": 1, "rejected": 0}, http.StatusUnprocessableEntity, "QUANTITY_EXCEEDS_UNVERIFIED"},
		{"qc quantities past the request bound", http.MethodPost, "/api/v1/assignments/A-1/sizes/M/qc-reviews",
			map[string]any{"approved": math.MaxInt, "rejected": 1, "remarks": "torn"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"pick quantity past the request bound", http.MethodPost, "/api/v1/assignments/A-1/sizes/M/picks",
			map[string]any{"quantity": 1000001}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing quantity", http.MethodPost, "/api/v1/assignments/A-1/sizes/M/picks",
			map[string]any{}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"negative quantity", http.MethodPost, "/api/v1/assignments/A-1/sizes/M/picks",
			map[string]any{"quantity": -1}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown size", http.MethodPost, "/api/v1/assignments/A-1/sizes/XS/picks",
			map[string]any{"quantity": 1}, http.StatusNotFound, "RESOURCE_NOT_FOUND"},
		{"unknown assignment", http.MethodGet, "/api/v1/assignments/A-404", nil,
			http.StatusNotFound, "RESOURCE_NOT_FOUND"},
		{"duplicate assignment", http.MethodPost, "/api/v1/assignments",
			map[string]any{"assignmentId": "A-1", "sizes": map[string]int{"S": 1}}, http.StatusConflict, "CONFLICT"},
		{"bad size code", http.MethodPost, "/api/v1/assignments",
			map[string]any{"assignmentId": "A-2", "sizes": map[string]int{"M L": 1}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"zero assigned", http.MethodPost, "/api/v1/assignments",
			map[string]any{"assignmentId": "A-3", "sizes": map[string]int{"M": 0}}, http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, tt.method, tt.path, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decode[middleware.APIErrorResponse](t, rec).Code)
		})
	}
}

func TestQCVerdictLargeQuantitiesAreInputErrors(t *testing.T) {
	router := newTestRouter(t, nil)
	openAssignment(t, router)

	rec := do(router, http.MethodPost, "/api/v1/assignments/A-1/sizes/M/picks", map[string]any{"quantity": 20})
	require.Equal(t, http.StatusOK, rec.Code)

	// Within the request bound but far above what is unverified
	rec = do(router, http.MethodPost, "/api/v1/assignments/A-1/sizes/M/qc-reviews",
		map[string]any{"approved": 1000000, "rejected": 1000000, "remarks": "torn"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	resp := decode[middleware.APIErrorResponse](t, rec)
	assert.Equal(t, "QUANTITY_EXCEEDS_UNVERIFIED", resp.Code)
	assert.Equal(t, "2000000", resp.Details["requested"])
	assert.Equal(t, "20", resp.Details["limit"])
}

func TestLimitErrorDetails(t *testing.T) {
	router := newTestRouter(t, nil)
	openAssignment(t, router)

	rec := do(router, http.MethodPost, "/api/v1/assignments/A-1/sizes/M/picks", map[string]any{"quantity": 51})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decode[middleware.APIErrorResponse](t, rec)
	assert.Equal(t, "A-1", resp.Details["assignmentId"])
	assert.Equal(t, "M", resp.Details["size"])
	assert.Equal(t, "51", resp.Details["requested"])
	assert.Equal(t, "50", resp.Details["limit"])
}

func TestRemarksRequired(t *testing.T) {
	router := newTestRouter(t, nil)
	openAssignment(t, router)

	rec := do(router, http.MethodPost, "/api/v1/assignments/A-1/sizes/M/picks", map[string]any{"quantity": 10})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodPost, "/api/v1/assignments/A-1/sizes/M/qc-reviews", map[string]any{
		"approved": 8,
		"rejected": 2,
		"remarks":  "   ",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "REMARKS_REQUIRED", decode[middleware.APIErrorResponse](t, rec).Code)

	rec = do(router, http.MethodGet, "/api/v1/assignments/A-1/sizes/M", nil)
	assert.Equal(t, int64(2), decode[application.SizeBucketDTO](t, rec).Version)
}

func TestCloseAssignmentBlocksPicks(t *testing.T) {
	router := newTestRouter(t, nil)
	openAssignment(t, router)

	rec := do(router, http.MethodPost, "/api/v1/assignments/A-1/close", map[string]any{"reason": "order cancelled"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "closed", decode[application.AssignmentDTO](t, rec).Status)

	rec = do(router, http.MethodPost, "/api/v1/assignments/A-1/close", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(router, http.MethodPost, "/api/v1/assignments/A-1/sizes/M/picks", map[string]any{"quantity": 1})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ASSIGNMENT_CLOSED", decode[middleware.APIErrorResponse](t, rec).Code)
}

func TestIdempotentPickReplay(t *testing.T) {
	router := newTestRouter(t, nil)
	openAssignment(t, router)

	path := "/api/v1/assignments/A-1/sizes/M/picks"
	first := do(router, http.MethodPost, path, map[string]any{"quantity": 10}, idempotency.HeaderIdempotencyKey, "pick-1")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	replay := do(router, http.MethodPost, path, map[string]any{"quantity": 10}, idempotency.HeaderIdempotencyKey, "pick-1")
	require.Equal(t, http.StatusOK, replay.Code)
	assert.JSONEq(t, first.Body.String(), replay.Body.String())

	rec := do(router, http.MethodGet, "/api/v1/assignments/A-1/sizes/M", nil)
	assert.Equal(t, 10, decode[application.SizeBucketDTO](t, rec).Picked)

	mismatch := do(router, http.MethodPost, path, map[string]any{"quantity": 11}, idempotency.HeaderIdempotencyKey, "pick-1")
	assert.Equal(t, http.StatusUnprocessableEntity, mismatch.Code)
}
