package idempotency

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/wms-platform/reconciliation-service/pkg/errors"
	"github.com/wms-platform/reconciliation-service/pkg/middleware"
)

// HeaderIdempotencyKey is the HTTP header name for the idempotency key
const HeaderIdempotencyKey = "Idempotency-Key"

// Idempotency error codes
const (
	CodeKeyRequired        = "IDEMPOTENCY_KEY_REQUIRED"
	CodeKeyInvalid         = "IDEMPOTENCY_KEY_INVALID"
	CodeParameterMismatch  = "IDEMPOTENCY_PARAMETER_MISMATCH"
	CodeConcurrentRequest  = "IDEMPOTENCY_CONCURRENT_REQUEST"
	CodeStorageUnavailable = "IDEMPOTENCY_STORAGE_UNAVAILABLE"
)

// responseWriter captures the response so it can be replayed
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware replays the stored response for a repeated Idempotency-Key.
// Only mutating methods are considered.
func Middleware(config *Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isMutatingMethod(c.Request.Method) {
			c.Next()
			return
		}

		key := NormalizeKey(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			if config.RequireKey {
				middleware.AbortWithAppError(c, apperrors.NewAppError(CodeKeyRequired,
					"Idempotency-Key header is required for this operation", http.StatusBadRequest))
				return
			}
			c.Next()
			return
		}

		if err := ValidateKey(key, config.MaxKeyLength); err != nil {
			middleware.AbortWithAppError(c, apperrors.NewAppError(CodeKeyInvalid,
				fmt.Sprintf("invalid idempotency key: %v", err), http.StatusBadRequest))
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		process(c, config, key, ComputeFingerprint(c.Request.URL.Path, body))
	}
}

func process(c *gin.Context, config *Config, key, fingerprint string) {
	ctx := c.Request.Context()
	path := c.FullPath()
	logger := config.Logger.WithContext(ctx).With("idempotencyKey", key, "path", c.Request.URL.Path)
	now := time.Now().UTC()

	record := &IdempotencyKey{
		ID:                 KeyID(config.ServiceName, key),
		Key:                key,
		ServiceID:          config.ServiceName,
		RequestPath:        c.Request.URL.Path,
		RequestMethod:      c.Request.Method,
		RequestFingerprint: fingerprint,
		CreatedAt:          now,
		ExpiresAt:          now.Add(config.RetentionPeriod),
	}

	existing, isNew, err := config.Repository.AcquireLock(ctx, record)
	if err != nil {
		logger.Error("Failed to acquire idempotency lock", "error", err)
		recordOutcome(config, path, "storage_error")
		middleware.AbortWithAppError(c, apperrors.NewAppError(CodeStorageUnavailable,
			"idempotency storage is temporarily unavailable", http.StatusServiceUnavailable))
		return
	}

	if !isNew && existing.RequestFingerprint != fingerprint {
		logger.Warn("Idempotency parameter mismatch")
		recordOutcome(config, path, "mismatch")
		middleware.AbortWithAppError(c, apperrors.NewAppError(CodeParameterMismatch,
			"request parameters differ from the original request with this idempotency key",
			http.StatusUnprocessableEntity))
		return
	}

	if existing.IsCompleted() {
		logger.Info("Idempotency cache hit", "statusCode", existing.ResponseCode)
		recordOutcome(config, path, "hit")
		for k, v := range existing.ResponseHeaders {
			c.Header(k, v)
		}
		c.Data(existing.ResponseCode, "application/json; charset=utf-8", existing.ResponseBody)
		c.Abort()
		return
	}

	if !isNew && existing.IsLocked() {
		lockAge := time.Since(*existing.LockedAt)
		if lockAge < config.LockTimeout {
			logger.Warn("Concurrent idempotency request", "lockAge", lockAge)
			recordOutcome(config, path, "concurrent")
			middleware.AbortWithAppError(c, apperrors.NewAppError(CodeConcurrentRequest,
				"a request with this idempotency key is currently being processed", http.StatusConflict))
			return
		}
		logger.Info("Stale idempotency lock, proceeding", "lockAge", lockAge)
	}

	recordOutcome(config, path, "miss")

	writer := &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
	c.Writer = writer

	c.Next()

	status := writer.Status()

	// Server failures are not cached; the client may retry with the same key.
	if status >= http.StatusInternalServerError {
		if err := config.Repository.ReleaseLock(ctx, existing.ID); err != nil {
			logger.Error("Failed to release idempotency lock", "error", err)
		}
		return
	}

	responseBody := writer.body.Bytes()
	if len(responseBody) > config.MaxResponseSize {
		logger.Warn("Response too large to cache", "size", len(responseBody))
		responseBody = []byte(fmt.Sprintf(`{"error":"response too large to cache","size":%d}`, len(responseBody)))
	}

	if err := config.Repository.StoreResponse(ctx, existing.ID, status, responseBody, extractResponseHeaders(c)); err != nil {
		logger.Error("Failed to store idempotency response", "error", err)
		recordOutcome(config, path, "storage_error")
	}
}

func recordOutcome(config *Config, path, outcome string) {
	if config.Metrics != nil {
		config.Metrics.RecordIdempotency(path, outcome)
	}
}

func isMutatingMethod(method string) bool {
	return method == http.MethodPost ||
		method == http.MethodPut ||
		method == http.MethodPatch ||
		method == http.MethodDelete
}

func extractResponseHeaders(c *gin.Context) map[string]string {
	headers := make(map[string]string)
	for k, v := range c.Writer.Header() {
		if len(v) > 0 && k != "Content-Length" {
			headers[k] = v[0]
		}
	}
	return headers
}
