package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wms-platform/reconciliation-service/pkg/errors"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	Setup(router, DefaultConfig("test", slog.New(slog.NewTextHandler(io.Discard, nil))))
	return router
}

func TestRequestID_GeneratedAndPropagated(t *testing.T) {
	router := newTestRouter()
	var seen string
	router.GET("/x", func(c *gin.Context) {
		seen, _ = c.Request.Context().Value(logging.RequestIDKey).(string)
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
	assert.Equal(t, rec.Header().Get(HeaderRequestID), seen)
}

func TestCorrelationID_OperatorHeader(t *testing.T) {
	router := newTestRouter()
	var operator string
	router.GET("/x", func(c *gin.Context) {
		operator = GetOperatorID(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderCorrelationID, "corr-1")
	req.Header.Set(HeaderOperatorID, "inspector-7")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "corr-1", rec.Header().Get(HeaderCorrelationID))
	assert.Equal(t, "inspector-7", operator)
}

func TestErrorResponder_WritesAppError(t *testing.T) {
	router := newTestRouter()
	router.GET("/fail", func(c *gin.Context) {
		NewErrorResponder(c, slog.New(slog.NewTextHandler(io.Discard, nil))).RespondWithAppError(
			apperrors.ErrUnprocessable(apperrors.CodeExceedsRemaining, "too many units").WithDetail("size", "M"),
		)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apperrors.CodeExceedsRemaining, body.Code)
	assert.Equal(t, "M", body.Details["size"])
	assert.Equal(t, "/fail", body.Path)
	assert.NotEmpty(t, body.RequestID)
}

func TestContentType_RejectsNonJSONBody(t *testing.T) {
	router := newTestRouter()
	router.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/x", bytes.NewBufferString("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRecovery_ReturnsInternalError(t *testing.T) {
	router := newTestRouter()
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNoRoute(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ROUTE_NOT_FOUND")
}

func TestBindAndValidate(t *testing.T) {
	type pickRequest struct {
		Quantity *int   `json:"quantity" binding:"required,gte=0"`
		Size     string `json:"size" binding:"required,size_code"`
	}

	tests := []struct {
		name      string
		body      string
		wantErr   bool
		wantField string
	}{
		{"valid", `{"quantity":3,"size":"XL"}`, false, ""},
		{"negative quantity", `{"quantity":-1,"size":"XL"}`, true, "quantity"},
		{"missing quantity", `{"size":"XL"}`, true, "quantity"},
		{"bad size", `{"quantity":1,"size":"x l"}`, true, "size"},
		{"malformed json", `{`, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			InitValidator()
			gin.SetMode(gin.TestMode)
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var req pickRequest
			appErr := BindAndValidate(c, &req)
			if !tt.wantErr {
				assert.Nil(t, appErr)
				return
			}
			require.NotNil(t, appErr)
			if tt.wantField != "" {
				assert.Contains(t, appErr.Details, tt.wantField)
			}
		})
	}
}

func TestIsValidSizeCode(t *testing.T) {
	for _, s := range []string{"S", "XL", "2XL", "32", "10-12", "32/34"} {
		assert.True(t, IsValidSizeCode(s), s)
	}
	for _, s := range []string{"", " M", "M L", "<script>"} {
		assert.False(t, IsValidSizeCode(s), s)
	}
}
