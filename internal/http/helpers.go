package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/taxsync/internal/syncengine"
)

// Pagination bounds for list endpoints.
const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // additional context (validation errors, etc.)
}

// SuccessResponse is a standard success response with optional data.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// PaginatedResponse wraps paginated data with metadata.
type PaginatedResponse struct {
	Data       any   `json:"data"`
	Total      int64 `json:"total"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	HasMore    bool  `json:"has_more"`
	TotalPages int   `json:"total_pages,omitempty"`
}

func newPaginatedResponse(data any, total int64, limit, offset int) PaginatedResponse {
	resp := PaginatedResponse{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+limit) < total,
	}
	if limit > 0 {
		resp.TotalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return resp
}

// --- Error Response Helpers ---

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

// respondNotFound sends a 404 Not Found response.
func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found", Code: syncengine.CodeNotFound})
}

// respondInternalError logs the error and sends a 500 Internal Server Error response.
// The actual error is logged but not exposed to the client.
func respondInternalError(c *gin.Context, logger *zap.SugaredLogger, err error, context string) {
	logger.Errorw("Internal error", "context", context, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// operationDetails is attached to operational errors so clients can find the conflicting job.
type operationDetails struct {
	JobID      string `json:"job_id,omitempty"`
	EntityType string `json:"entity_type,omitempty"`
}

// respondOperationError maps scheduler errors to their HTTP status. Anything
// that is not an *OperationError is an internal failure.
func respondOperationError(c *gin.Context, logger *zap.SugaredLogger, err error, context string) {
	var opErr *syncengine.OperationError
	if !errors.As(err, &opErr) {
		respondInternalError(c, logger, err, context)
		return
	}
	status := opErr.StatusCode
	if status == 0 {
		status = http.StatusBadRequest
	}
	resp := ErrorResponse{Error: opErr.Message, Code: opErr.Code}
	if opErr.JobID != "" || opErr.EntityType != "" {
		resp.Details = operationDetails{JobID: opErr.JobID, EntityType: string(opErr.EntityType)}
	}
	c.JSON(status, resp)
}

// --- Success Response Helpers ---

// respondAccepted sends a 202 Accepted response (for async operations).
func respondAccepted(c *gin.Context, message string, data any) {
	c.JSON(http.StatusAccepted, SuccessResponse{Message: message, Data: data})
}

// --- Parameter Parsing ---

// parsePagination reads limit/offset query parameters. Out-of-range values are
// clamped rather than rejected; non-numeric values are a 400.
func parsePagination(c *gin.Context) (limit, offset int, ok bool) {
	limit = defaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			respondBadRequest(c, "invalid limit")
			return 0, 0, false
		}
		limit = v
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	if raw := c.Query("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			respondBadRequest(c, "invalid offset")
			return 0, 0, false
		}
		offset = v
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset, true
}

// parseTimeQuery accepts RFC3339 timestamps or a relative duration such as "24h".
func parseTimeQuery(c *gin.Context, name string, now time.Time) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts, true
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		ts := now.Add(-d)
		return &ts, true
	}
	respondBadRequest(c, "invalid "+name+": expected RFC3339 timestamp or duration")
	return nil, false
}
