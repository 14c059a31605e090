package controller

import (
	"errors"
	"net/http"
	"strconv"

	"powerbi-glean-connector/internal/middleware"
	"powerbi-glean-connector/internal/model"
	"powerbi-glean-connector/internal/repository"
	"powerbi-glean-connector/internal/service"
	"powerbi-glean-connector/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type SyncController struct {
	service   service.SyncService
	validator *validator.Validate
}

type Response struct {
	Success       bool        `json:"success"`
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	Message       string      `json:"message,omitempty"`
	CorrelationID string      `json:"correlationId"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TriggerSyncRequest is the optional body of a manual sync trigger
type TriggerSyncRequest struct {
	Workspace string `json:"workspace" validate:"omitempty,min=1,max=255"`
}

// ListSyncRunsResponse is the paginated run history payload
type ListSyncRunsResponse struct {
	Runs   []*model.SyncRun `json:"runs"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

func NewSyncController(service service.SyncService) *SyncController {
	return &SyncController{
		service:   service,
		validator: validator.New(),
	}
}

// TriggerSync godoc
// @Summary Trigger a sync run
// @Description Starts a workspace sync run and returns its pending record immediately
// @Tags sync
// @Accept json
// @Produce json
// @Param request body TriggerSyncRequest false "Optional workspace override"
// @Success 202 {object} Response{data=model.SyncRun}
// @Failure 400 {object} Response
// @Failure 409 {object} Response
// @Router /api/v1/sync [post]
func (sc *SyncController) TriggerSync(c *gin.Context) {
	var req TriggerSyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			appErr := utils.NewValidationError("Invalid request body", err.Error())
			sc.sendError(c, utils.GetErrorStatus(appErr), appErr.Code, appErr.Message)
			return
		}
		if err := sc.validator.Struct(&req); err != nil {
			appErr := utils.NewValidationError("Validation failed", err.Error())
			sc.sendError(c, utils.GetErrorStatus(appErr), appErr.Code, appErr.Message)
			return
		}
	}

	run, err := sc.service.RunNow(c.Request.Context(), req.Workspace)
	if err != nil {
		if appErr, ok := utils.AsAppError(err); ok {
			sc.sendError(c, utils.GetErrorStatus(appErr), appErr.Code, appErr.Message)
			return
		}
		sc.sendError(c, http.StatusInternalServerError, "SYNC_START_FAILED", "Failed to start sync run")
		return
	}

	c.JSON(http.StatusAccepted, Response{
		Success:       true,
		Data:          run,
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// GetSyncStatus godoc
// @Summary Get sync status
// @Description Reports whether a run is active plus the most recent run record
// @Tags sync
// @Produce json
// @Success 200 {object} Response{data=service.SyncStatusInfo}
// @Router /api/v1/sync/status [get]
func (sc *SyncController) GetSyncStatus(c *gin.Context) {
	status, err := sc.service.GetStatus(c.Request.Context())
	if err != nil {
		sc.sendError(c, http.StatusInternalServerError, "STATUS_FAILED", "Failed to get sync status")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success:       true,
		Data:          status,
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// ListSyncRuns godoc
// @Summary List sync runs
// @Description Retrieves a paginated run history, newest first, with optional status filtering
// @Tags sync
// @Produce json
// @Param status query string false "Filter by status (pending, running, succeeded, failed)"
// @Param limit query int false "Maximum number of items to return (default: 20, max: 100)"
// @Param offset query int false "Number of items to skip (default: 0)"
// @Success 200 {object} Response{data=ListSyncRunsResponse}
// @Router /api/v1/sync/runs [get]
func (sc *SyncController) ListSyncRuns(c *gin.Context) {
	var status model.SyncStatus
	if statusStr := c.Query("status"); statusStr != "" {
		status = model.SyncStatus(statusStr)
	}

	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil {
			offset = parsed
		}
	}

	runs, total, err := sc.service.ListRuns(c.Request.Context(), status, limit, offset)
	if err != nil {
		sc.sendError(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list sync runs")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: ListSyncRunsResponse{
			Runs:   runs,
			Total:  total,
			Limit:  limit,
			Offset: offset,
		},
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// GetSyncRun godoc
// @Summary Get a sync run by ID
// @Description Retrieves a single sync run by its UUID
// @Tags sync
// @Produce json
// @Param id path string true "Sync run UUID"
// @Success 200 {object} Response{data=model.SyncRun}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/sync/runs/{id} [get]
func (sc *SyncController) GetSyncRun(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		sc.sendError(c, http.StatusBadRequest, "MISSING_ID", "Sync run ID is required")
		return
	}

	run, err := sc.service.GetRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			sc.sendError(c, http.StatusNotFound, utils.ErrCodeRunNotFound, "Sync run not found")
			return
		}
		if errors.Is(err, repository.ErrInvalidUUID) {
			sc.sendError(c, http.StatusBadRequest, "INVALID_ID", "Invalid sync run ID format")
			return
		}
		sc.sendError(c, http.StatusInternalServerError, "GET_FAILED", "Failed to get sync run")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success:       true,
		Data:          run,
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

func (sc *SyncController) sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
		CorrelationID: middleware.GetCorrelationID(c),
	})
}
