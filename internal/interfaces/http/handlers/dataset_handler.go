package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/ProtonGraph/internal/domain/dataset"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

// DatasetHandler serves dataset artifact endpoints.
type DatasetHandler struct {
	store  dataset.Store
	logger logging.Logger
}

// NewDatasetHandler builds a DatasetHandler on the artifact store.
func NewDatasetHandler(store dataset.Store, logger logging.Logger) *DatasetHandler {
	return &DatasetHandler{store: store, logger: logger}
}

// DatasetSummary is the listing shape: artifact metadata without samples.
type DatasetSummary struct {
	Name              string `json:"name"`
	VocabularyVersion string `json:"vocabulary_version"`
	CreatedAt         string `json:"created_at"`
	Samples           int    `json:"samples"`
}

// Get returns the full dataset artifact.
func (h *DatasetHandler) Get(c *gin.Context) {
	d, err := h.store.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, d)
}

// Summary returns artifact metadata without the sample payload.
func (h *DatasetHandler) Summary(c *gin.Context) {
	d, err := h.store.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, DatasetSummary{
		Name:              d.Name,
		VocabularyVersion: d.VocabularyVersion,
		CreatedAt:         d.CreatedAt.Format(time.RFC3339),
		Samples:           len(d.Samples),
	})
}

// Split partitions the dataset at molecule level and returns both halves.
// Query parameters: ratio (train fraction, default 0.8) and seed.
func (h *DatasetHandler) Split(c *gin.Context) {
	ratio := 0.8
	if v := c.Query("ratio"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			respondError(c, errors.Newf(errors.ErrCodeBadRequest, "invalid ratio: %q", v))
			return
		}
		ratio = parsed
	}
	seed, err := parseInt64Query(c, "seed", 0)
	if err != nil {
		respondError(c, err)
		return
	}

	d, err := h.store.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}

	train, validation, err := d.Split(ratio, seed)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"train": train, "validation": validation})
}

// Folds partitions the dataset into k cross-validation folds at molecule
// level. Query parameters: k (default 5) and seed.
func (h *DatasetHandler) Folds(c *gin.Context) {
	k := 5
	if v := c.Query("k"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respondError(c, errors.Newf(errors.ErrCodeBadRequest, "invalid k: %q", v))
			return
		}
		k = parsed
	}
	seed, err := parseInt64Query(c, "seed", 0)
	if err != nil {
		respondError(c, err)
		return
	}

	d, err := h.store.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}

	folds, err := d.Folds(k, seed)
	if err != nil {
		respondError(c, err)
		return
	}

	type foldPair struct {
		Train      *dataset.Dataset `json:"train"`
		Validation *dataset.Dataset `json:"validation"`
	}
	out := make([]foldPair, len(folds))
	for i, f := range folds {
		out[i] = foldPair{Train: f[0], Validation: f[1]}
	}
	respond(c, http.StatusOK, out)
}

// Delete removes a dataset artifact.
func (h *DatasetHandler) Delete(c *gin.Context) {
	name := c.Param("name")

	exists, err := h.store.Exists(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	if !exists {
		respondError(c, errors.Newf(errors.ErrCodeDatasetNotFound, "dataset %s not found", name))
		return
	}

	if err := h.store.Delete(c.Request.Context(), name); err != nil {
		respondError(c, err)
		return
	}
	h.logger.Info("dataset deleted", logging.String("dataset", name))
	respond(c, http.StatusOK, gin.H{"deleted": name})
}
