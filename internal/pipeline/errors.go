package pipeline

import "fmt"

// Stage names one phase of the ingestion pipeline, used for failure
// attribution in result envelopes and logs.
type Stage string

// Pipeline stages.
const (
	StageClassify Stage = "classify"
	StageExtract  Stage = "extract"
)

// FailureCode classifies why a stage failed. QUOTA_EXCEEDED is the only code
// that is retryable by waiting; the rest need operator attention or a
// different document.
type FailureCode string

// Failure taxonomy.
const (
	CodeClassifyFailure     FailureCode = "CLASSIFY_FAILURE"
	CodeExtractSchema       FailureCode = "EXTRACT_SCHEMA_FAILURE"
	CodeQuotaExceeded       FailureCode = "QUOTA_EXCEEDED"
	CodeProviderUnavailable FailureCode = "PROVIDER_UNAVAILABLE"
	CodeConfigFailure       FailureCode = "CONFIG_FAILURE"
)

// Retryable reports whether a failure may succeed if simply retried later.
func Retryable(code FailureCode) bool {
	return code == CodeQuotaExceeded
}

// StageError carries a failure along with the stage that raised it, so no
// error ever crosses the orchestrator boundary without attribution.
type StageError struct {
	Stage Stage
	Code  FailureCode
	Err   error
}

// Error implements error.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %s: %v", e.Stage, e.Code, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *StageError) Unwrap() error {
	return e.Err
}
