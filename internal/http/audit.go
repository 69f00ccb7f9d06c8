package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/taxsync/internal/entities"
)

type AuditController struct {
	audit  AuditLog
	logger *zap.SugaredLogger
}

func NewAuditController(audit AuditLog, logger *zap.SugaredLogger) *AuditController {
	return &AuditController{
		audit:  audit,
		logger: logger,
	}
}

// GetAuditEvents returns paginated audit events as JSON
// GET /api/audit?type=&limit=&offset=
func (ac *AuditController) GetAuditEvents(c *gin.Context) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}

	var events []entities.AuditEvent
	var total int64
	var err error

	if eventType := c.Query("type"); eventType != "" {
		events, total, err = ac.audit.GetEventsByType(entities.AuditEventType(eventType), limit, offset)
	} else {
		events, total, err = ac.audit.GetEvents(limit, offset)
	}
	if err != nil {
		respondInternalError(c, ac.logger, err, "load audit events")
		return
	}

	c.JSON(http.StatusOK, newPaginatedResponse(events, total, limit, offset))
}

// GetJobHistory returns the operator actions taken on one sync job
// GET /api/audit/jobs/:id
func (ac *AuditController) GetJobHistory(c *gin.Context) {
	events, err := ac.audit.GetJobHistory(c.Param("id"))
	if err != nil {
		respondInternalError(c, ac.logger, err, "load job history")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job_id": c.Param("id"),
		"events": events,
	})
}
