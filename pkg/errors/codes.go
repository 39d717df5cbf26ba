package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTimeout            ErrorCode = "COMMON_005"
	ErrCodeValidation         ErrorCode = "COMMON_006"
	ErrCodeSerialization      ErrorCode = "COMMON_007"
	ErrCodeDatabaseError      ErrorCode = "COMMON_008"
	ErrCodeCacheError         ErrorCode = "COMMON_009"
	ErrCodeStorageError       ErrorCode = "COMMON_010"
	ErrCodeMessageQueueError  ErrorCode = "COMMON_011"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_012"
	ErrCodeUnknown            ErrorCode = "COMMON_099"

	CodeOK = ErrorCode("OK")
)

// Pipeline error codes: the rejection taxonomy of the dataset pipeline.
// The first three are non-fatal and counted per run; PIPE_004 is fatal.
const (
	ErrCodeSkippedSite    ErrorCode = "PIPE_001" // malformed site annotation at split time
	ErrCodeCorrespondence ErrorCode = "PIPE_002" // unresolvable atom bijection between states
	ErrCodeEncoding       ErrorCode = "PIPE_003" // out-of-vocabulary attribute at encode time
	ErrCodeIntegrity      ErrorCode = "PIPE_004" // duplicate-key or invariant violation at assembly
)

// Record / structure error codes
const (
	ErrCodeRecordNotFound      ErrorCode = "REC_001"
	ErrCodeRecordInvalid       ErrorCode = "REC_002"
	ErrCodeStructureInvalid    ErrorCode = "REC_003"
	ErrCodeSDFileParseError    ErrorCode = "REC_004"
	ErrCodePredictionFailed    ErrorCode = "REC_005"
	ErrCodeExclusionUnavailable ErrorCode = "REC_006"
)

// Dataset error codes
const (
	ErrCodeDatasetNotFound    ErrorCode = "DS_001"
	ErrCodeDatasetExists      ErrorCode = "DS_002"
	ErrCodeDatasetCorrupt     ErrorCode = "DS_003"
	ErrCodeVocabularyMismatch ErrorCode = "DS_004"
	ErrCodeSplitInvalid       ErrorCode = "DS_005"
)

// Run error codes
const (
	ErrCodeRunNotFound ErrorCode = "RUN_001"
	ErrCodeRunConflict ErrorCode = "RUN_002"
	ErrCodeRunAborted  ErrorCode = "RUN_003"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes for the control
// plane API.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeStorageError:       http.StatusInternalServerError,
	ErrCodeMessageQueueError:  http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,

	ErrCodeSkippedSite:    http.StatusUnprocessableEntity,
	ErrCodeCorrespondence: http.StatusUnprocessableEntity,
	ErrCodeEncoding:       http.StatusUnprocessableEntity,
	ErrCodeIntegrity:      http.StatusInternalServerError,

	ErrCodeRecordNotFound:       http.StatusNotFound,
	ErrCodeRecordInvalid:        http.StatusBadRequest,
	ErrCodeStructureInvalid:     http.StatusBadRequest,
	ErrCodeSDFileParseError:     http.StatusBadRequest,
	ErrCodePredictionFailed:     http.StatusBadGateway,
	ErrCodeExclusionUnavailable: http.StatusServiceUnavailable,

	ErrCodeDatasetNotFound:    http.StatusNotFound,
	ErrCodeDatasetExists:      http.StatusConflict,
	ErrCodeDatasetCorrupt:     http.StatusInternalServerError,
	ErrCodeVocabularyMismatch: http.StatusConflict,
	ErrCodeSplitInvalid:       http.StatusBadRequest,

	ErrCodeRunNotFound: http.StatusNotFound,
	ErrCodeRunConflict: http.StatusConflict,
	ErrCodeRunAborted:  http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTimeout:            "operation timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeStorageError:       "object storage error",
	ErrCodeMessageQueueError:  "message queue error",
	ErrCodeServiceUnavailable: "service unavailable",

	ErrCodeSkippedSite:    "site annotation skipped",
	ErrCodeCorrespondence: "atom correspondence unresolvable",
	ErrCodeEncoding:       "attribute outside encoding vocabulary",
	ErrCodeIntegrity:      "dataset integrity invariant violated",

	ErrCodeRecordNotFound:       "molecule record not found",
	ErrCodeRecordInvalid:        "molecule record invalid",
	ErrCodeStructureInvalid:     "structure invalid",
	ErrCodeSDFileParseError:     "failed to parse SD file",
	ErrCodePredictionFailed:     "protonation-state prediction failed",
	ErrCodeExclusionUnavailable: "exclusion reference set unavailable",

	ErrCodeDatasetNotFound:    "dataset not found",
	ErrCodeDatasetExists:      "dataset already exists",
	ErrCodeDatasetCorrupt:     "dataset artifact corrupt",
	ErrCodeVocabularyMismatch: "vocabulary version mismatch",
	ErrCodeSplitInvalid:       "invalid split parameters",

	ErrCodeRunNotFound: "run not found",
	ErrCodeRunConflict: "run already in progress",
	ErrCodeRunAborted:  "run aborted",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
