package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/reconciliation-service/internal/api/dto"
	"github.com/wms-platform/reconciliation-service/internal/application"
	"github.com/wms-platform/reconciliation-service/internal/config"
	"github.com/wms-platform/reconciliation-service/pkg/idempotency"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
	"github.com/wms-platform/reconciliation-service/pkg/middleware"
)

// routerDeps is everything the HTTP surface needs
type routerDeps struct {
	service     *application.ReconciliationService
	idempotency *idempotency.Config
	metrics     *metrics.Metrics
	ready       func(ctx context.Context) error
	logger      *logging.Logger
}

func setupRouter(deps routerDeps) *gin.Engine {
	router := gin.New()

	middleware.Setup(router, middleware.DefaultConfig(config.ServiceName, deps.logger.Logger))
	router.Use(middleware.MetricsMiddleware(deps.metrics))
	router.Use(middleware.TracingMiddleware(config.ServiceName))

	router.GET("/health", middleware.HealthCheck(config.ServiceName))
	router.GET("/ready", middleware.ReadinessCheck(config.ServiceName, deps.ready))
	router.GET("/metrics", middleware.MetricsEndpoint(deps.metrics))

	service, logger := deps.service, deps.logger
	idem := idempotency.Middleware(deps.idempotency)

	api := router.Group("/api/v1/assignments")
	{
		api.POST("", idem, openAssignmentHandler(service, logger))
		api.GET("/:assignmentId", getAssignmentHandler(service, logger))
		api.POST("/:assignmentId/close", idem, closeAssignmentHandler(service, logger))

		api.GET("/:assignmentId/sizes", listSizeBucketsHandler(service, logger))
		api.GET("/:assignmentId/sizes/:size", getBucketHandler(service, logger))
		api.POST("/:assignmentId/sizes/:size/picks", idem, submitPickHandler(service, logger))
		api.GET("/:assignmentId/sizes/:size/picks", listPicksHandler(service, logger))
		api.POST("/:assignmentId/sizes/:size/qc-reviews", idem, submitQCVerdictHandler(service, logger))
		api.GET("/:assignmentId/sizes/:size/qc-reviews", listQCReviewsHandler(service, logger))
	}

	return router
}

func openAssignmentHandler(service *application.ReconciliationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req dto.OpenAssignmentRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		cmd := application.OpenAssignmentCommand{
			AssignmentID: req.AssignmentID,
			OrderID:      req.OrderID,
			BatchID:      req.BatchID,
			ProductID:    req.ProductID,
			Sizes:        req.Sizes,
		}

		assignment, err := service.OpenAssignment(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, assignment)
	}
}

func getAssignmentHandler(service *application.ReconciliationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		query := application.GetAssignmentQuery{AssignmentID: c.Param("assignmentId")}

		assignment, err := service.GetAssignment(c.Request.Context(), query)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, assignment)
	}
}

func closeAssignmentHandler(service *application.ReconciliationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		// The body is optional
		var req dto.CloseAssignmentRequest
		if c.Request.ContentLength > 0 {
			if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
				responder.RespondWithAppError(appErr)
				return
			}
		}

		cmd := application.CloseAssignmentCommand{
			AssignmentID: c.Param("assignmentId"),
			Reason:       req.Reason,
		}

		assignment, err := service.CloseAssignment(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, assignment)
	}
}

func listSizeBucketsHandler(service *application.ReconciliationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		query := application.ListSizeBucketsQuery{AssignmentID: c.Param("assignmentId")}

		buckets, err := service.ListSizeBuckets(c.Request.Context(), query)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, buckets)
	}
}

func getBucketHandler(service *application.ReconciliationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		query := application.GetBucketQuery{
			AssignmentID: c.Param("assignmentId"),
			Size:         c.Param("size"),
		}

		bucket, err := service.GetBucket(c.Request.Context(), query)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, bucket)
	}
}

func submitPickHandler(service *application.ReconciliationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req dto.SubmitPickRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		picker := req.Picker
		if picker == "" {
			picker = middleware.GetOperatorID(c)
		}

		cmd := application.SubmitPickCommand{
			AssignmentID: c.Param("assignmentId"),
			Size:         c.Param("size"),
			Quantity:     *req.Quantity,
			Picker:       picker,
		}

		bucket, err := service.SubmitPick(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, bucket)
	}
}

func submitQCVerdictHandler(service *application.ReconciliationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req dto.SubmitQCVerdictRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		inspector := req.Inspector
		if inspector == "" {
			inspector = middleware.GetOperatorID(c)
		}

		cmd := application.SubmitQCVerdictCommand{
			AssignmentID: c.Param("assignmentId"),
			Size:         c.Param("size"),
			Approved:     *req.Approved,
			Rejected:     *req.Rejected,
			Remarks:      req.Remarks,
			Inspector:    inspector,
		}

		bucket, err := service.SubmitQCVerdict(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, bucket)
	}
}

func listPicksHandler(service *application.ReconciliationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		query := application.AuditQuery{
			AssignmentID: c.Param("assignmentId"),
			Size:         c.Param("size"),
		}

		events, err := service.ListPickEvents(c.Request.Context(), query)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"assignmentId": query.AssignmentID,
			"size":         query.Size,
			"picks":        events,
		})
	}
}

func listQCReviewsHandler(service *application.ReconciliationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		query := application.AuditQuery{
			AssignmentID: c.Param("assignmentId"),
			Size:         c.Param("size"),
		}

		events, err := service.ListQCReviews(c.Request.Context(), query)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"assignmentId": query.AssignmentID,
			"size":         query.Size,
			"qcReviews":    events,
		})
	}
}
