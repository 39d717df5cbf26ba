package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/ProtonGraph/internal/domain/run"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/pkg/errors"
	"github.com/turtacn/ProtonGraph/pkg/types/common"
)

// JobDispatcher enqueues preparation jobs for workers.
type JobDispatcher interface {
	PublishPrepareJob(ctx context.Context, payload kafka.PrepareJobPayload) error
}

// RunCache caches run lookups between status polls.
type RunCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// RunHandler serves run submission and status endpoints.
type RunHandler struct {
	runs       run.Repository
	dispatcher JobDispatcher
	cache      RunCache
	logger     logging.Logger
}

// NewRunHandler builds a RunHandler. cache may be nil.
func NewRunHandler(runs run.Repository, dispatcher JobDispatcher, cache RunCache, logger logging.Logger) *RunHandler {
	return &RunHandler{runs: runs, dispatcher: dispatcher, cache: cache, logger: logger}
}

// SubmitRunRequest is the body of POST /runs.
type SubmitRunRequest struct {
	DatasetName       string `json:"dataset_name" binding:"required"`
	VocabularyVersion string `json:"vocabulary_version"`
	Source            string `json:"source" binding:"required"`
	Workers           int    `json:"workers"`
}

// Submit registers a pending run and enqueues a preparation job for it.
func (h *RunHandler) Submit(c *gin.Context) {
	var req SubmitRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid run submission"))
		return
	}
	if req.VocabularyVersion == "" {
		req.VocabularyVersion = "v1"
	}

	r := run.New(req.DatasetName, req.VocabularyVersion, req.Source)
	if err := h.runs.Save(c.Request.Context(), r); err != nil {
		respondError(c, err)
		return
	}

	if err := h.dispatcher.PublishPrepareJob(c.Request.Context(), kafka.PrepareJobPayload{
		RunID:             string(r.ID),
		DatasetName:       r.DatasetName,
		VocabularyVersion: r.VocabularyVersion,
		Source:            r.Source,
		Workers:           req.Workers,
	}); err != nil {
		r.Fail(err, nil)
		if updateErr := h.runs.Update(c.Request.Context(), r); updateErr != nil {
			h.logger.Error("failed to mark run failed",
				logging.String("run_id", string(r.ID)),
				logging.Error(updateErr),
			)
		}
		respondError(c, err)
		return
	}

	h.logger.Info("run submitted",
		logging.String("run_id", string(r.ID)),
		logging.String("dataset", r.DatasetName),
	)
	respond(c, http.StatusAccepted, r)
}

// Get returns one run by ID, serving terminal runs from cache when present.
func (h *RunHandler) Get(c *gin.Context) {
	id := c.Param("runID")

	if h.cache != nil {
		var cached run.Run
		if hit, err := h.cache.Get(c.Request.Context(), "run:"+id, &cached); err == nil && hit {
			respond(c, http.StatusOK, &cached)
			return
		}
	}

	r, err := h.runs.GetByID(c.Request.Context(), common.ID(id))
	if err != nil {
		respondError(c, err)
		return
	}

	// only terminal runs are safe to cache, their state no longer changes
	if h.cache != nil && r.Terminal() {
		if err := h.cache.Set(c.Request.Context(), "run:"+id, r); err != nil {
			h.logger.Warn("run cache write failed", logging.String("run_id", id), logging.Error(err))
		}
	}
	respond(c, http.StatusOK, r)
}

// List returns runs in reverse submission order.
func (h *RunHandler) List(c *gin.Context) {
	offset, limit := parsePagination(c)
	runs, err := h.runs.List(c.Request.Context(), offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, runs)
}
