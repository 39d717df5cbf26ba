package pipeline

import (
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

// Report summarizes one pipeline run: how many records and sites entered,
// how many samples came out, and where the rest went.  Every input site is
// accounted for by exactly one bucket.
type Report struct {
	RecordsRead int `json:"records_read"`
	SitesSeen   int `json:"sites_seen"`

	Samples int `json:"samples"`

	SkippedSites         int `json:"skipped_sites"`
	Deduplicated         int `json:"deduplicated"`
	Excluded             int `json:"excluded"`
	CorrespondenceErrors int `json:"correspondence_errors"`
	EncodingErrors       int `json:"encoding_errors"`

	UniqueStructures int `json:"unique_structures"`
}

// ObserveRejection buckets a non-fatal rejection by its error code.
func (r *Report) ObserveRejection(err error) {
	switch errors.GetCode(err) {
	case errors.ErrCodeCorrespondence:
		r.CorrespondenceErrors++
	case errors.ErrCodeEncoding:
		r.EncodingErrors++
	default:
		r.SkippedSites++
	}
}

// Rejected returns the total count of sites dropped for any reason.
func (r *Report) Rejected() int {
	return r.SkippedSites + r.Deduplicated + r.Excluded +
		r.CorrespondenceErrors + r.EncodingErrors
}
