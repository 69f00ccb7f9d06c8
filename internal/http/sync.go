package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/taxsync/internal/audit"
	"github.com/mrlokans/taxsync/internal/database/synclog"
	"github.com/mrlokans/taxsync/internal/entities"
)

const statsTimeout = 5 * time.Second

// SyncController exposes job control, stats and the sync log.
type SyncController struct {
	scheduler SyncScheduler
	stats     StatsProvider
	log       SyncLogReader
	requeuers map[entities.SyncEntityType]Requeuer
	audit     AuditLog
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewSyncController(scheduler SyncScheduler, stats StatsProvider, log SyncLogReader, requeuers map[entities.SyncEntityType]Requeuer, audit AuditLog, logger *zap.SugaredLogger) *SyncController {
	return &SyncController{
		scheduler: scheduler,
		stats:     stats,
		log:       log,
		requeuers: requeuers,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}
}

func actorFrom(c *gin.Context) audit.Actor {
	return audit.Actor{IPAddress: c.ClientIP()}
}

// GetStats handles GET /api/sync/stats
func (sc *SyncController) GetStats(c *gin.Context) {
	if sc.stats == nil {
		respondNotFound(c, "stats")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
	defer cancel()

	summary, err := sc.stats.Compute(ctx)
	if err != nil {
		respondInternalError(c, sc.logger, err, "compute stats")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ListJobs handles GET /api/sync/jobs, newest first.
func (sc *SyncController) ListJobs(c *gin.Context) {
	jobs := sc.scheduler.Jobs()
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// GetJob handles GET /api/sync/jobs/:id
func (sc *SyncController) GetJob(c *gin.Context) {
	job, err := sc.scheduler.Job(c.Param("id"))
	if err != nil {
		respondOperationError(c, sc.logger, err, "get job")
		return
	}
	c.JSON(http.StatusOK, job)
}

// ClearJob handles DELETE /api/sync/jobs/:id. Only finished jobs can be cleared.
func (sc *SyncController) ClearJob(c *gin.Context) {
	id := c.Param("id")
	job, _ := sc.scheduler.Job(id)
	err := sc.scheduler.Clear(id)
	sc.logControl(c, "job_clear", job, id, err)
	if err != nil {
		respondOperationError(c, sc.logger, err, "clear job")
		return
	}
	c.Status(http.StatusNoContent)
}

// StartSyncRequest is the request body for POST /api/sync/start.
type StartSyncRequest struct {
	EntityType string `json:"entity_type" binding:"required"`
}

// StartSync handles POST /api/sync/start
func (sc *SyncController) StartSync(c *gin.Context) {
	var req StartSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "entity_type is required (product, invoice or full)")
		return
	}

	// Jobs outlive the request; the scheduler only uses ctx for the snapshot.
	jobs, err := sc.scheduler.Start(c.Request.Context(), req.EntityType)
	if sc.audit != nil {
		sc.audit.LogSyncStart(actorFrom(c), req.EntityType, jobs, err)
	}
	if err != nil {
		respondOperationError(c, sc.logger, err, "start sync")
		return
	}
	message := "sync started"
	if len(jobs) == 0 {
		message = "every entity type is already syncing"
	}
	respondAccepted(c, message, gin.H{"jobs": jobs})
}

// PauseJob handles POST /api/sync/jobs/:id/pause
func (sc *SyncController) PauseJob(c *gin.Context) {
	sc.control(c, "job_pause", sc.scheduler.Pause)
}

// ResumeJob handles POST /api/sync/jobs/:id/resume
func (sc *SyncController) ResumeJob(c *gin.Context) {
	sc.control(c, "job_resume", sc.scheduler.Resume)
}

// StopJob handles POST /api/sync/jobs/:id/stop
func (sc *SyncController) StopJob(c *gin.Context) {
	sc.control(c, "job_stop", sc.scheduler.Stop)
}

func (sc *SyncController) control(c *gin.Context, action string, op func(string) (entities.SyncJob, error)) {
	id := c.Param("id")
	job, err := op(id)
	sc.logControl(c, action, job, id, err)
	if err != nil {
		respondOperationError(c, sc.logger, err, action)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (sc *SyncController) logControl(c *gin.Context, action string, job entities.SyncJob, id string, err error) {
	if sc.audit == nil {
		return
	}
	if job.ID == "" {
		job.ID = id
	}
	sc.audit.LogSyncControl(actorFrom(c), action, job, err)
}

// ListLogs handles GET /api/sync/logs?entity_type=&outcome=&job_id=&since=&limit=&offset=
func (sc *SyncController) ListLogs(c *gin.Context) {
	if sc.log == nil {
		respondNotFound(c, "sync log")
		return
	}

	var filter synclog.Filter
	if raw := c.Query("entity_type"); raw != "" {
		t, err := entities.ParseSyncEntityType(raw)
		if err != nil {
			respondBadRequest(c, err.Error())
			return
		}
		filter.EntityType = t
	}
	if raw := c.Query("outcome"); raw != "" {
		outcome := entities.SyncOutcome(raw)
		if !outcome.Valid() {
			respondBadRequest(c, "invalid outcome: "+raw)
			return
		}
		filter.Outcome = outcome
	}
	filter.JobID = c.Query("job_id")

	since, ok := parseTimeQuery(c, "since", sc.now())
	if !ok {
		return
	}
	if since != nil {
		filter.Since = *since
	}

	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}

	entries, total, err := sc.log.Query(filter, limit, offset)
	if err != nil {
		respondInternalError(c, sc.logger, err, "query sync log")
		return
	}
	c.JSON(http.StatusOK, newPaginatedResponse(entries, total, limit, offset))
}

// RequeueRequest is the request body for POST /api/sync/requeue.
// An empty IDs list requeues every failed record of the type.
type RequeueRequest struct {
	EntityType string `json:"entity_type" binding:"required"`
	IDs        []uint `json:"ids"`
}

// Requeue handles POST /api/sync/requeue
func (sc *SyncController) Requeue(c *gin.Context) {
	var req RequeueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "entity_type is required")
		return
	}
	entityType, err := entities.ParseSyncEntityType(req.EntityType)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	requeuer, ok := sc.requeuers[entityType]
	if !ok {
		respondBadRequest(c, "requeue not supported for "+string(entityType))
		return
	}

	count, err := requeuer.Requeue(c.Request.Context(), req.IDs)
	if sc.audit != nil {
		sc.audit.LogRequeue(actorFrom(c), entityType, len(req.IDs), count, err)
	}
	if err != nil {
		respondInternalError(c, sc.logger, err, "requeue")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entity_type": entityType,
		"requeued":    count,
	})
}
