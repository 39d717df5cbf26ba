// Package run tracks pipeline run lifecycle: submission, progress, and the
// final report.
package run

import (
	"context"
	"time"

	"github.com/turtacn/ProtonGraph/internal/pipeline"
	"github.com/turtacn/ProtonGraph/pkg/types/common"
)

// Run is one submitted pipeline execution.
type Run struct {
	common.BaseEntity

	DatasetName       string           `json:"dataset_name"`
	VocabularyVersion string           `json:"vocabulary_version"`
	Source            string           `json:"source"`
	Status            common.RunStatus `json:"status"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	Report *pipeline.Report `json:"report,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// New creates a pending run for the given dataset.
func New(datasetName, vocabVersion, source string) *Run {
	return &Run{
		BaseEntity:        common.NewBaseEntity(),
		DatasetName:       datasetName,
		VocabularyVersion: vocabVersion,
		Source:            source,
		Status:            common.RunPending,
	}
}

// Start marks the run as executing.
func (r *Run) Start() {
	now := time.Now().UTC()
	r.Status = common.RunRunning
	r.StartedAt = &now
	r.UpdatedAt = now
}

// Complete records a successful finish with its report.
func (r *Run) Complete(report *pipeline.Report) {
	now := time.Now().UTC()
	r.Status = common.RunCompleted
	r.Report = report
	r.FinishedAt = &now
	r.UpdatedAt = now
}

// Fail records a fatal failure.
func (r *Run) Fail(err error, report *pipeline.Report) {
	now := time.Now().UTC()
	r.Status = common.RunFailed
	r.Report = report
	if err != nil {
		r.Error = err.Error()
	}
	r.FinishedAt = &now
	r.UpdatedAt = now
}

// Terminal reports whether the run has finished, successfully or not.
func (r *Run) Terminal() bool {
	return r.Status == common.RunCompleted || r.Status == common.RunFailed
}

// Repository persists runs.
type Repository interface {
	Save(ctx context.Context, r *Run) error
	Update(ctx context.Context, r *Run) error
	GetByID(ctx context.Context, id common.ID) (*Run, error)
	List(ctx context.Context, offset, limit int) ([]*Run, error)
}
